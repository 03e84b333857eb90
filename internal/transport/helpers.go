package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrForbidden):
		return 403
	case errors.Is(err, model.ErrBatchNotFound),
		errors.Is(err, model.ErrItemNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrEmptyURLList),
		errors.Is(err, model.ErrEmptySourceURL),
		errors.Is(err, model.ErrBadNotifyURL),
		errors.Is(err, model.ErrIncorrectID):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}

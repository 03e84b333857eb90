package service

import (
	"net/url"
	"strings"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
)

func validateCreateRequest(req *model.CreateBatchRequest) error {
	// пустой батч отвергаем сразу - детектору не придется решать
	// вакуумно-истинный кейс "все ноль айтемов терминальны"
	if req == nil || len(req.URLs) == 0 {
		return model.ErrEmptyURLList
	}

	for _, src := range req.URLs {
		if strings.TrimSpace(src) == "" {
			return model.ErrEmptySourceURL
		}
	}

	// notification_url только валидируем, по адресу не ходим
	target, err := url.Parse(req.NotificationURL)
	if err != nil || target.Host == "" {
		return model.ErrBadNotifyURL
	}
	switch target.Scheme {
	case "http", "https":
	default:
		return model.ErrBadNotifyURL
	}

	return nil
}

// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"
	"strconv"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type BatchHandler struct {
	service BatchService
}

type BatchService interface {
	CreateBatch(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error)
	GetBatch(ctx context.Context, id string) (*model.BatchStatusResponse, error)                  // статус батча с поайтемной разбивкой
	ListResults(ctx context.Context, id, token string) (*model.ImagesResponse, error)            // выдача готовых картинок - под секретом
	LoadImage(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error)    // прям скачать результат
}

func NewBatchHandler(svc BatchService) *BatchHandler {
	return &BatchHandler{
		service: svc,
	}
}

func (h BatchHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h BatchHandler) CreateBatch(ctx *ginext.Context) {
	var req model.CreateBatchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.CreateBatch(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	// обработка асинхронная: отвечаем сразу, результат придет на notification_url
	ctx.JSON(201, res)
}

func (h BatchHandler) GetBatch(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.GetBatch(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h BatchHandler) ListImages(ctx *ginext.Context) {
	id := ctx.Param("id")
	token := ctx.Query("token")

	res, err := h.service.ListResults(ctx.Request.Context(), id, token)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h BatchHandler) LoadImage(ctx *ginext.Context) {
	id := ctx.Param("id")
	itemID, err := strconv.Atoi(ctx.Param("item"))
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "incorrect item id"})
		return
	}

	res, cType, err := h.service.LoadImage(ctx.Request.Context(), id, itemID)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for item %d of batch %q: %v", n, itemID, id, err)
	}
}

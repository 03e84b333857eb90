package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
)

type BatchAPIService interface {
	CreateBatch(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error)
	GetBatch(ctx context.Context, id string) (*model.BatchStatusResponse, error)
	ListResults(ctx context.Context, id, token string) (*model.ImagesResponse, error)
	LoadImage(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error)
	ReviveStuckTasks(ctx context.Context, limit int)
}

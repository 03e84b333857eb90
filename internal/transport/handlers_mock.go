package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/gin-gonic/gin"
)

type mockBatchService struct {
	createBatchFn func(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error)
	getBatchFn    func(ctx context.Context, id string) (*model.BatchStatusResponse, error)
	listResultsFn func(ctx context.Context, id, token string) (*model.ImagesResponse, error)
	loadImageFn   func(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error)
}

func (m *mockBatchService) CreateBatch(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error) {
	return m.createBatchFn(ctx, req)
}

func (m *mockBatchService) GetBatch(ctx context.Context, id string) (*model.BatchStatusResponse, error) {
	return m.getBatchFn(ctx, id)
}

func (m *mockBatchService) ListResults(ctx context.Context, id, token string) (*model.ImagesResponse, error) {
	return m.listResultsFn(ctx, id, token)
}

func (m *mockBatchService) LoadImage(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error) {
	return m.loadImageFn(ctx, batchID, itemID)
}

func init() {
	gin.SetMode(gin.TestMode)
}

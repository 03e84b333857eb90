package worker

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
)

type mockReporterService struct {
	getItemFn func(ctx context.Context, batchID string, itemID int) (*model.Item, error)
	reportFn  func(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error
}

func (m *mockReporterService) GetItem(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
	return m.getItemFn(ctx, batchID, itemID)
}

func (m *mockReporterService) ReportItemOutcome(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error {
	return m.reportFn(ctx, batchID, itemID, out)
}

//----------------------------------

type mockStorage struct {
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return nil
}

//----------------------------------

type mockFetcher struct {
	fetchFn func(ctx context.Context, srcURL string) (io.ReadCloser, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, srcURL string) (io.ReadCloser, error) {
	return m.fetchFn(ctx, srcURL)
}

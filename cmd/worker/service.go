package main

import (
	"context"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/wb-go/wbf/retry"
)

type ItemWorkerService interface {
	GetItem(ctx context.Context, batchID string, itemID int) (*model.Item, error)
	ReportItemOutcome(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error
}

// NoopPublisher - ЗАГЛУШКА, функциональность настоящего паблишера в очередь не нужна в рамках работы воркера
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}

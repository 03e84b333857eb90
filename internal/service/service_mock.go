package service

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK REPOSITORY

type mockRepo struct {
	createBatchFn     func(ctx context.Context, b *model.Batch, items []model.Item) error
	getBatchFn        func(ctx context.Context, id string) (*model.Batch, error)
	getItemsFn        func(ctx context.Context, batchID string) ([]model.Item, error)
	getItemFn         func(ctx context.Context, batchID string, itemID int) (*model.Item, error)
	completeItemFn    func(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) (bool, error)
	finalizeBatchFn   func(ctx context.Context, batchID string) (bool, error)
	setNotifyStatusFn func(ctx context.Context, batchID string, st model.NotifyStatus) error
	fetchStuckFn      func(ctx context.Context, limit int) ([]model.TaskPayload, error)
}

func (m *mockRepo) CreateBatch(ctx context.Context, b *model.Batch, items []model.Item) error {
	return m.createBatchFn(ctx, b, items)
}

func (m *mockRepo) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	return m.getBatchFn(ctx, id)
}

func (m *mockRepo) GetItems(ctx context.Context, batchID string) ([]model.Item, error) {
	return m.getItemsFn(ctx, batchID)
}

func (m *mockRepo) GetItem(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
	return m.getItemFn(ctx, batchID, itemID)
}

func (m *mockRepo) CompleteItem(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) (bool, error) {
	return m.completeItemFn(ctx, batchID, itemID, out)
}

func (m *mockRepo) FinalizeBatch(ctx context.Context, batchID string) (bool, error) {
	return m.finalizeBatchFn(ctx, batchID)
}

func (m *mockRepo) SetNotifyStatus(ctx context.Context, batchID string, st model.NotifyStatus) error {
	return m.setNotifyStatusFn(ctx, batchID, st)
}

func (m *mockRepo) FetchStuckTasks(ctx context.Context, limit int) ([]model.TaskPayload, error) {
	return m.fetchStuckFn(ctx, limit)
}

// MOCK STORAGE

type mockStorage struct {
	putFn    func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}

// MOCK NOTIFIER

type mockNotifier struct {
	notifyFn func(ctx context.Context, target string, payload *model.NotificationPayload) error
}

func (m *mockNotifier) Notify(ctx context.Context, target string, payload *model.NotificationPayload) error {
	return m.notifyFn(ctx, target, payload)
}

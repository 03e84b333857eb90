// Package service provides business-logic for the app
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/UnendingLoop/ImageBatcher/internal/mwlogger"
	"github.com/UnendingLoop/ImageBatcher/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type BatchService struct {
	repo          repository.BatchRepo
	publisher     TaskPublisher
	storage       ArtifactStorage
	notifier      BatchNotifier
	publicBaseURL string
	webhookSecret string
}

func NewBatchService(repo repository.BatchRepo, pub TaskPublisher, strg ArtifactStorage, notif BatchNotifier, publicBaseURL, secret string) *BatchService {
	return &BatchService{
		repo:          repo,
		publisher:     pub,
		storage:       strg,
		notifier:      notif,
		publicBaseURL: publicBaseURL,
		webhookSecret: secret,
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ArtifactStorage - контракт для работы с хранилищем
type ArtifactStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// BatchNotifier - контракт доставки финального результата на callback-URL
type BatchNotifier interface {
	Notify(ctx context.Context, target string, payload *model.NotificationPayload) error
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// CreateBatch - валидирует запрос, пишет батч с айтемами в базу и после
// этого раскладывает по одному таску на айтем в очередь. Порядок жесткий:
// воркер не должен получить таск для батча, которого еще нет в базе.
func (s *BatchService) CreateBatch(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := &model.Batch{
		ID:              uuid.New(),
		Status:          model.BatchProcessing,
		NotificationURL: req.NotificationURL,
		NotifyStatus:    model.NotifyPending,
		CreatedAt:       &now,
	}

	// состав батча фиксируется здесь и больше никогда не меняется
	items := make([]model.Item, 0, len(req.URLs))
	for i, srcURL := range req.URLs {
		items = append(items, model.Item{
			BatchID:   batch.ID,
			ID:        i,
			SourceURL: srcURL,
			Status:    model.ItemQueued,
		})
	}

	if err := s.repo.CreateBatch(ctx, batch, items); err != nil {
		logger.Error().Err(err).Msg("Failed to create batch in DB")
		return nil, model.ErrCommon500
	}

	for _, item := range items {
		payload, err := json.Marshal(model.TaskPayload{BatchID: batch.ID.String(), ID: item.ID, URL: item.SourceURL})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to marshal task payload")
			continue
		}
		if err := s.publisher.SendWithRetry(ctx, retryStrategy, []byte(batch.ID.String()), payload); err != nil {
			// запись уже в базе: недоставленный таск останется queued,
			// его переотправит ReviveStuckTasks
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish task %d of batch %q to queue", item.ID, batch.ID))
		}
	}

	return &model.CreateBatchResponse{BatchID: batch.ID.String(), TaskCount: len(items)}, nil
}

func (s *BatchService) GetBatch(ctx context.Context, id string) (*model.BatchStatusResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBatchNotFound):
			return nil, model.ErrBatchNotFound
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch batch %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch items of batch %q from DB", id))
		return nil, model.ErrCommon500
	}

	return &model.BatchStatusResponse{BatchID: id, Status: batch.Status, Items: items}, nil
}

// GetItem - нужен воркеру для быстрой проверки статуса перед обработкой
func (s *BatchService) GetItem(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(batchID); err != nil {
		return nil, model.ErrIncorrectID
	}

	item, err := s.repo.GetItem(ctx, batchID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrItemNotFound):
			return nil, model.ErrItemNotFound
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch item %d of batch %q from DB", itemID, batchID))
			return nil, model.ErrCommon500
		}
	}
	return item, nil
}

// ListResults - выдача готовых картинок батча третьей стороне, закрыта
// общим секретом
func (s *BatchService) ListResults(ctx context.Context, id, token string) (*model.ImagesResponse, error) {
	if token == "" || token != s.webhookSecret {
		return nil, model.ErrForbidden
	}

	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBatchNotFound):
			return nil, model.ErrBatchNotFound
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch batch %q from DB", id))
			return nil, model.ErrCommon500
		}
	}
	if batch.Status != model.BatchCompleted {
		return nil, model.ErrResultNotReady
	}

	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch items of batch %q from DB", id))
		return nil, model.ErrCommon500
	}

	images := make([]model.ImageRef, 0, len(items))
	for _, item := range items {
		if item.Status != model.ItemCompleted {
			continue
		}
		images = append(images, model.ImageRef{
			ImageID: strconv.Itoa(item.ID),
			URL:     fmt.Sprintf("%s/batches/%s/images/%d", s.publicBaseURL, id, item.ID),
		})
	}

	return &model.ImagesResponse{Images: images}, nil
}

// LoadImage - стримит один готовый артефакт из хранилища
func (s *BatchService) LoadImage(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(batchID); err != nil {
		return nil, "", model.ErrIncorrectID
	}

	item, err := s.repo.GetItem(ctx, batchID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrItemNotFound):
			return nil, "", model.ErrItemNotFound
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch item %d of batch %q from DB", itemID, batchID))
			return nil, "", model.ErrCommon500
		}
	}
	if item.Status != model.ItemCompleted {
		return nil, "", model.ErrResultNotReady
	}

	data, cType, err := s.storage.Get(ctx, item.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-image %q from Storage", item.ResultKey))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

// ReviveStuckTasks - переотправка тасков для айтемов, надолго застрявших в
// queued (просевший enqueue при создании либо дроп сообщения очередью).
// Безопасно: запись результата в любом случае идет через CAS по статусу.
func (s *BatchService) ReviveStuckTasks(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	stuck, err := s.repo.FetchStuckTasks(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load stuck tasks from DB")
		return
	}

	for _, task := range stuck {
		payload, err := json.Marshal(task)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to marshal stuck task payload")
			continue
		}
		if err := s.publisher.SendWithRetry(ctx, retryStrategy, []byte(task.BatchID), payload); err != nil {
			logger.Error().Err(err).Msg("Failed to publish stuck task to queue")
		}
	}
}

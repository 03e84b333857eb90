package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/UnendingLoop/ImageBatcher/internal/mwlogger"
	"github.com/google/uuid"
)

// ReportItemOutcome - колбэк воркера по завершению айтема. Может прилетать
// повторно (at-least-once доставка) и конкурентно - в том числе по одному и
// тому же айтему. Терминальный статус пишется условно: только из queued.
// Конфликтующий повторный исход никогда не перезаписывает уже записанный -
// он логируется и игнорируется.
func (s *BatchService) ReportItemOutcome(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(batchID); err != nil {
		return model.ErrIncorrectID
	}
	if !model.TerminalItemStatusMap[out.Status] {
		return model.ErrIncorrectOutcome
	}

	updated, err := s.repo.CompleteItem(ctx, batchID, itemID, out)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to complete item %d of batch %q in DB", itemID, batchID))
		return model.ErrCommon500
	}

	if !updated {
		// guard по статусу не прошел - это ределивери. Расхождение исходов
		// только логируем, записанный результат не трогаем.
		current, gErr := s.repo.GetItem(ctx, batchID, itemID)
		switch {
		case gErr != nil:
			logger.Error().Err(gErr).Msg(fmt.Sprintf("Failed to re-read item %d of batch %q after no-op write", itemID, batchID))
		case current.Status != out.Status:
			logger.Warn().Msg(fmt.Sprintf("Item %d of batch %q is already %q, ignoring conflicting outcome %q", itemID, batchID, current.Status, out.Status))
		}
	}

	// проверку завершенности гоняем всегда, даже после no-op: ределивери
	// не должен молча съесть последний шанс батча финализироваться
	return s.evaluateCompletion(ctx, batchID)
}

// evaluateCompletion - ядро детектора. Последние айтемы батча могут
// финишировать одновременно на разных воркерах, поэтому "я был последним -
// я и уведомляю" здесь не работает: оба увидят полный батч. Единственная
// точка сериализации - CAS processing->completed на записи батча, его
// выигрывает ровно один вызов.
func (s *BatchService) evaluateCompletion(ctx context.Context, batchID string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	items, err := s.repo.GetItems(ctx, batchID)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch items of batch %q from DB", batchID))
		return model.ErrCommon500
	}
	if len(items) == 0 {
		return model.ErrBatchNotFound
	}

	for _, item := range items {
		if !model.TerminalItemStatusMap[item.Status] {
			return nil // батч еще не готов - этот вызов ничего не решает
		}
	}

	won, err := s.repo.FinalizeBatch(ctx, batchID)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to finalize batch %q in DB", batchID))
		return model.ErrCommon500
	}
	if !won {
		return nil // финализацию забрал конкурентный вызов либо батч уже completed
	}

	s.deliverNotification(ctx, batchID, items)
	return nil
}

// deliverNotification - вызывается ровно один раз на батч: только из-под
// выигранного CAS. Фейл доставки фиксируется в notification_status и не
// откатывает completed-статус батча.
func (s *BatchService) deliverNotification(ctx context.Context, batchID string, items []model.Item) {
	logger := mwlogger.LoggerFromContext(ctx)

	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch batch %q before notification", batchID))
		return
	}

	status := model.NotifyDelivered
	if err := s.notifier.Notify(ctx, batch.NotificationURL, buildNotification(batchID, items)); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to deliver notification for batch %q", batchID))
		status = model.NotifyFailed
	}

	if err := s.repo.SetNotifyStatus(ctx, batchID, status); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to save notification status of batch %q", batchID))
	}
}

func buildNotification(batchID string, items []model.Item) *model.NotificationPayload {
	itemErrors := make([]model.ItemError, 0)
	for _, item := range items {
		if item.Status == model.ItemFailed {
			itemErrors = append(itemErrors, model.ItemError{ImageID: strconv.Itoa(item.ID), Error: item.ErrMsg})
		}
	}

	return &model.NotificationPayload{
		BatchID:   batchID,
		Completed: true,
		Errors:    itemErrors,
	}
}

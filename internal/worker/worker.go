// Package worker contains methods for worker to init at start, and to process batch-item tasks
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/UnendingLoop/ImageBatcher/internal/imageproc"
	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/UnendingLoop/ImageBatcher/internal/mwlogger"
	"github.com/UnendingLoop/ImageBatcher/internal/service"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

// ItemReporterService - контракт сервиса со стороны воркера
type ItemReporterService interface {
	GetItem(ctx context.Context, batchID string, itemID int) (*model.Item, error)
	ReportItemOutcome(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error
}

// SourceFetcher - контракт скачивания исходника по внешнему URL
type SourceFetcher interface {
	Fetch(ctx context.Context, srcURL string) (io.ReadCloser, error)
}

type Worker struct {
	storage      service.ArtifactStorage
	service      ItemReporterService
	fetcher      SourceFetcher
	queue        <-chan kafkago.Message
	consumer     *wbfkafka.Consumer
	resultPrefix string
}

func NewWorkerInstance(strg service.ArtifactStorage, svc ItemReporterService, f SourceFetcher, q <-chan kafkago.Message, cons *wbfkafka.Consumer, resPr string) *Worker {
	return &Worker{storage: strg, service: svc, fetcher: f, queue: q, consumer: cons, resultPrefix: resPr}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			if err := w.handleMessage(ctx, msg); err != nil && !errors.Is(err, model.ErrItemNotFound) {
				// не коммитим - очередь передоставит таск
				log.Printf("Task %s failed: %v", string(msg.Key), err)
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var task model.TaskPayload
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		// мусорное сообщение - передоставка его не починит, логируем и коммитим
		log.Printf("Failed to unmarshal task payload %q: %v", string(msg.Value), err)
		return nil
	}

	// сервисные логи таска получают контекстный логгер - так же как HTTP-запросы
	logger := zlog.Logger.With().
		Str("batch_id", task.BatchID).
		Int("item_id", task.ID).
		Logger()
	return w.processTask(mwlogger.WithLogger(ctx, logger), &task)
}

func (w *Worker) processTask(ctx context.Context, task *model.TaskPayload) error {
	// считать айтем из базы
	item, err := w.service.GetItem(ctx, task.BatchID, task.ID)
	if err != nil {
		return fmt.Errorf("worker failed to fetch item %d of batch %q from DB: %w", task.ID, task.BatchID, err)
	}

	// ределивери уже завершенного айтема: картинку не перегоняем, но
	// репорт шлем обязательно - проверка завершенности батча не должна
	// потеряться вместе с дубликатом
	if model.TerminalItemStatusMap[item.Status] {
		out := model.ItemOutcome{Status: item.Status, ResultKey: item.ResultKey, ErrMsg: item.ErrMsg}
		return w.service.ReportItemOutcome(ctx, task.BatchID, task.ID, out)
	}

	// скачиваем исходник
	src, err := w.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		// ошибка скачивания - это результат айтема, а не инфраструктурный фейл
		return w.service.ReportItemOutcome(ctx, task.BatchID, task.ID, model.FailedOutcome(fmt.Sprintf("failed to fetch source: %v", err)))
	}
	defer closeFileFlow(src)

	// сама обработка
	result, size, err := imageproc.Normalize(src)
	if err != nil {
		return w.service.ReportItemOutcome(ctx, task.BatchID, task.ID, model.FailedOutcome(fmt.Sprintf("failed to process image: %v", err)))
	}

	// кладем результат в сторедж
	resKey := fmt.Sprintf("%s%s/%d.jpg", w.resultPrefix, task.BatchID, task.ID)
	if err := w.storage.Put(ctx, resKey, size, model.JPEG, result); err != nil {
		// сторедж мог прилечь - айтем не фейлим, пусть таск передоставится
		return fmt.Errorf("worker failed to put result image to storage: %w", err)
	}

	return w.service.ReportItemOutcome(ctx, task.BatchID, task.ID, model.CompletedOutcome(resKey))
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		log.Println("Worker failed to close fileflow:", err)
	}
}

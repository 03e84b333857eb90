package batchpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

// CreateBatch - пишет батч и все его айтемы одной транзакцией:
// либо в очередь уходит полный батч, либо ничего
func (p PostgresRepo) CreateBatch(ctx context.Context, b *model.Batch, items []model.Item) error {
	tx, err := p.DB.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to open tx for batch creation: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Println("Failed to rollback batch-creation tx:", err)
		}
	}()

	batchQuery := `INSERT INTO batches (batch_id, status, notification_url, notification_status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)`
	if _, err := tx.ExecContext(ctx, batchQuery, b.ID, b.Status, b.NotificationURL, b.NotifyStatus, b.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	itemQuery := `INSERT INTO batch_items (batch_id, item_id, source_url, status, result_key, err_msg, updated_at)
	VALUES ($1, $2, $3, $4, '', '', $5)`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, itemQuery, b.ID, item.ID, item.SourceURL, item.Status, b.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert item %d: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

func (p PostgresRepo) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	query := `SELECT batch_id, status, notification_url, notification_status, created_at, updated_at
	FROM batches
	WHERE batch_id = $1`
	var batch model.Batch

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&batch.ID,
		&batch.Status,
		&batch.NotificationURL,
		&batch.NotifyStatus,
		&batch.CreatedAt,
		&batch.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrBatchNotFound
		default:
			return nil, err // 500
		}
	}
	return &batch, nil
}

func (p PostgresRepo) GetItems(ctx context.Context, batchID string) ([]model.Item, error) {
	query := `SELECT batch_id, item_id, source_url, status, result_key, err_msg, updated_at
	FROM batch_items
	WHERE batch_id = $1
	ORDER BY item_id`

	rows, err := p.DB.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	items := make([]model.Item, 0)
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.BatchID,
			&item.ID,
			&item.SourceURL,
			&item.Status,
			&item.ResultKey,
			&item.ErrMsg,
			&item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (p PostgresRepo) GetItem(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
	query := `SELECT batch_id, item_id, source_url, status, result_key, err_msg, updated_at
	FROM batch_items
	WHERE batch_id = $1 AND item_id = $2`
	var item model.Item

	err := p.DB.QueryRowContext(ctx, query, batchID, itemID).Scan(&item.BatchID,
		&item.ID,
		&item.SourceURL,
		&item.Status,
		&item.ResultKey,
		&item.ErrMsg,
		&item.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrItemNotFound
		default:
			return nil, err // 500
		}
	}
	return &item, nil
}

// CompleteItem - условная запись терминального статуса: срабатывает только
// если айтем все еще queued. Повторная доставка того же таска упирается в
// guard по статусу и превращается в no-op (false, nil).
func (p PostgresRepo) CompleteItem(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) (bool, error) {
	query := `UPDATE batch_items
	SET status = $3, result_key = $4, err_msg = $5, updated_at = now()
	WHERE batch_id = $1 AND item_id = $2 AND status = $6
	RETURNING item_id`

	var updated int
	err := p.DB.QueryRowContext(ctx, query, batchID, itemID, out.Status, out.ResultKey, out.ErrMsg, model.ItemQueued).Scan(&updated)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return false, nil // guard не прошел - айтем уже терминальный либо не существует
		default:
			return false, err // 500
		}
	}
	return true, nil
}

// FinalizeBatch - CAS processing->completed. Из всех конкурентных вызовов
// ровно один получает true - он и шлет уведомление.
func (p PostgresRepo) FinalizeBatch(ctx context.Context, batchID string) (bool, error) {
	query := `UPDATE batches
	SET status = $2, updated_at = now()
	WHERE batch_id = $1 AND status = $3
	RETURNING batch_id`

	var winner string
	err := p.DB.QueryRowContext(ctx, query, batchID, model.BatchCompleted, model.BatchProcessing).Scan(&winner)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return false, nil // батч уже финализирован кем-то другим
		default:
			return false, err // 500
		}
	}
	return true, nil
}

func (p PostgresRepo) SetNotifyStatus(ctx context.Context, batchID string, st model.NotifyStatus) error {
	query := `UPDATE batches SET notification_status = $2, updated_at = now() WHERE batch_id = $1`
	row := p.DB.QueryRowContext(ctx, query, batchID, st)

	if row.Err() != nil {
		switch {
		case errors.Is(row.Err(), sql.ErrNoRows):
			return model.ErrBatchNotFound // 404
		default:
			return row.Err() // 500
		}
	}
	return nil
}

func (p PostgresRepo) FetchStuckTasks(ctx context.Context, limit int) ([]model.TaskPayload, error) {
	query := `SELECT batch_id, item_id, source_url
	FROM batch_items
	WHERE status = $1
	AND updated_at < now() - interval '10 minutes'
	LIMIT $2`

	rows, err := p.DB.QueryContext(ctx, query, model.ItemQueued, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	stuck := make([]model.TaskPayload, 0, limit)
	for rows.Next() {
		var task model.TaskPayload
		if err := rows.Scan(&task.BatchID, &task.ID, &task.URL); err != nil {
			return nil, err
		}
		stuck = append(stuck, task)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return stuck, nil
}

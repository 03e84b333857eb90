// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type (
	BatchStatus  string
	ItemStatus   string
	NotifyStatus string
)

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
)

const (
	ItemQueued    ItemStatus = "queued"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

const (
	NotifyPending   NotifyStatus = "pending"
	NotifyDelivered NotifyStatus = "delivered"
	NotifyFailed    NotifyStatus = "failed"
)

// TerminalItemStatusMap - все статусы айтема кроме queued
var TerminalItemStatusMap = map[ItemStatus]bool{
	ItemCompleted: true,
	ItemFailed:    true,
}

//---------------------

type Batch struct {
	ID              uuid.UUID    `json:"batch_id"`
	Status          BatchStatus  `json:"status"`
	NotificationURL string       `json:"-"`
	NotifyStatus    NotifyStatus `json:"notification_status,omitempty"`
	CreatedAt       *time.Time   `json:"created_at,omitempty"`
	UpdatedAt       *time.Time   `json:"updated_at,omitempty"`
}

type Item struct {
	BatchID   uuid.UUID  `json:"-"`
	ID        int        `json:"id"`
	SourceURL string     `json:"url"`
	Status    ItemStatus `json:"status"`
	ResultKey string     `json:"-"`
	ErrMsg    string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ItemOutcome - результат обработки одного айтема воркером.
// Ровно одно из полей ResultKey/ErrMsg заполнено - согласно Status.
type ItemOutcome struct {
	Status    ItemStatus
	ResultKey string
	ErrMsg    string
}

func CompletedOutcome(resultKey string) ItemOutcome {
	return ItemOutcome{Status: ItemCompleted, ResultKey: resultKey}
}

func FailedOutcome(errMsg string) ItemOutcome {
	return ItemOutcome{Status: ItemFailed, ErrMsg: errMsg}
}

//-------------------

// CreateBatchRequest - тело входящего запроса на создание батча
type CreateBatchRequest struct {
	URLs            []string `json:"urls"`
	NotificationURL string   `json:"notification_url"`
}

type CreateBatchResponse struct {
	BatchID   string `json:"batch_id"`
	TaskCount int    `json:"task_count"`
}

// TaskPayload - сообщение в очередь, по одному на айтем
type TaskPayload struct {
	BatchID string `json:"batch_id"`
	ID      int    `json:"id"`
	URL     string `json:"url"`
}

// ItemError - одна ошибка в исходящем уведомлении
type ItemError struct {
	ImageID string `json:"image_id"`
	Error   string `json:"error"`
}

// NotificationPayload - исходящее уведомление на notification_url.
// Успешные айтемы вычисляются по отсутствию в списке errors.
type NotificationPayload struct {
	BatchID   string      `json:"batch_id"`
	Completed bool        `json:"completed"`
	Errors    []ItemError `json:"errors"`
}

// ImageRef - одна строка в выдаче готовых картинок батча
type ImageRef struct {
	ImageID string `json:"image_id"`
	URL     string `json:"url"`
}

type ImagesResponse struct {
	Images []ImageRef `json:"images"`
}

type BatchStatusResponse struct {
	BatchID string      `json:"batch_id"`
	Status  BatchStatus `json:"status"`
	Items   []Item      `json:"items"`
}

// ------------------

// JPEG - content-type результата: нормализация всегда отдает JPEG
const JPEG = "image/jpeg"

// ------------------

var (
	ErrCommon500      error = errors.New("something went wrong. Try again later")      // 500
	ErrEmptyURLList   error = errors.New("url list must not be empty")                 // 400
	ErrBadNotifyURL   error = errors.New("notification_url is not a valid http URL")   // 400
	ErrIncorrectID    error = errors.New("incorrect batch UUID")                       // 400
	ErrBatchNotFound  error = errors.New("specified batch UUID doesn't exist")         // 404
	ErrItemNotFound   error = errors.New("specified item doesn't exist in this batch") // 404
	ErrResultNotReady error = errors.New("requested batch is not processed yet")       // 404
	ErrForbidden      error = errors.New("invalid token")                              // 403
	ErrEmptySourceURL error = errors.New("empty source url in list")                   // 400

	// ErrIncorrectOutcome - программная ошибка вызывающего, не клиентская
	ErrIncorrectOutcome error = errors.New("item outcome status must be terminal")
)

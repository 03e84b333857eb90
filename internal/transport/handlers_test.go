package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestBatchHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewBatchHandler(nil)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func TestBatchHandler_CreateBatch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			body: `{"urls": ["http://a/1.jpg", "http://a/2.jpg"], "notification_url": "http://cb.local/hook"}`,
			mock: &mockBatchService{
				createBatchFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error) {
					require.Len(t, req.URLs, 2)
					require.Equal(t, "http://cb.local/hook", req.NotificationURL)
					return &model.CreateBatchResponse{BatchID: uuid.New().String(), TaskCount: 2}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "broken json",
			body:       `{"urls": [`,
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "empty url list",
			body: `{"urls": [], "notification_url": "http://cb.local/hook"}`,
			mock: &mockBatchService{
				createBatchFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error) {
					return nil, model.ErrEmptyURLList
				},
			},
			wantStatus: 400,
		},
		{
			name: "service is down",
			body: `{"urls": ["http://a/1.jpg"], "notification_url": "http://cb.local/hook"}`,
			mock: &mockBatchService{
				createBatchFn: func(ctx context.Context, req *model.CreateBatchRequest) (*model.CreateBatchResponse, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock)

			r.POST("/batches", func(c *gin.Context) {
				h.CreateBatch((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == 201 {
				var res model.CreateBatchResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
				require.Equal(t, 2, res.TaskCount)
				require.NotEmpty(t, res.BatchID)
			}
		})
	}
}

func TestBatchHandler_GetBatch(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockBatchService{
				getBatchFn: func(ctx context.Context, id string) (*model.BatchStatusResponse, error) {
					return &model.BatchStatusResponse{BatchID: id, Status: model.BatchProcessing}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "not found",
			mock: &mockBatchService{
				getBatchFn: func(ctx context.Context, id string) (*model.BatchStatusResponse, error) {
					return nil, model.ErrBatchNotFound
				},
			},
			wantStatus: 404,
		},
		{
			name: "bad id",
			mock: &mockBatchService{
				getBatchFn: func(ctx context.Context, id string) (*model.BatchStatusResponse, error) {
					return nil, model.ErrIncorrectID
				},
			},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock)

			r.GET("/batches/:id", func(c *gin.Context) {
				h.GetBatch((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/batches/123", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_ListImages(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name:  "success",
			query: "?token=secret",
			mock: &mockBatchService{
				listResultsFn: func(ctx context.Context, id, token string) (*model.ImagesResponse, error) {
					require.Equal(t, "secret", token)
					return &model.ImagesResponse{Images: []model.ImageRef{{ImageID: "0", URL: "http://public.local/x"}}}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:  "wrong token",
			query: "?token=nope",
			mock: &mockBatchService{
				listResultsFn: func(ctx context.Context, id, token string) (*model.ImagesResponse, error) {
					return nil, model.ErrForbidden
				},
			},
			wantStatus: 403,
		},
		{
			name:  "not ready",
			query: "?token=secret",
			mock: &mockBatchService{
				listResultsFn: func(ctx context.Context, id, token string) (*model.ImagesResponse, error) {
					return nil, model.ErrResultNotReady
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock)

			r.GET("/batches/:id/images", func(c *gin.Context) {
				h.ListImages((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/batches/123/images"+tt.query, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_LoadImage(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		mock       *mockBatchService
		wantStatus int
	}{
		{
			name: "success",
			path: "/batches/123/images/0",
			mock: &mockBatchService{
				loadImageFn: func(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error) {
					require.Equal(t, 0, itemID)
					return io.NopCloser(bytes.NewReader([]byte("jpeg-bytes"))), model.JPEG, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "non-numeric item id",
			path:       "/batches/123/images/abc",
			mock:       &mockBatchService{},
			wantStatus: 400,
		},
		{
			name: "not ready",
			path: "/batches/123/images/1",
			mock: &mockBatchService{
				loadImageFn: func(ctx context.Context, batchID string, itemID int) (io.ReadCloser, string, error) {
					return nil, "", model.ErrResultNotReady
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewBatchHandler(tt.mock)

			r.GET("/batches/:id/images/:item", func(c *gin.Context) {
				h.LoadImage((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == 200 {
				require.Equal(t, model.JPEG, w.Header().Get("Content-Type"))
				require.Equal(t, "jpeg-bytes", w.Body.String())
			}
		})
	}
}

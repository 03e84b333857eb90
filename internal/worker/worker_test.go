package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func validPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestWorker_processTask_OK(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New().String()

	task := &model.TaskPayload{BatchID: batchID, ID: 2, URL: "http://img.local/src.png"}

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, srcURL string) (io.ReadCloser, error) {
			require.Equal(t, task.URL, srcURL)
			return io.NopCloser(bytes.NewReader(validPNG())), nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Equal(t, "results/"+batchID+"/2.jpg", key)
			require.Equal(t, model.JPEG, ct)
			require.Greater(t, size, int64(0))
			return nil
		},
	}

	reported := false
	svc := &mockReporterService{
		getItemFn: func(ctx context.Context, gotBatch string, itemID int) (*model.Item, error) {
			return &model.Item{ID: itemID, Status: model.ItemQueued}, nil
		},
		reportFn: func(ctx context.Context, gotBatch string, itemID int, out model.ItemOutcome) error {
			reported = true
			require.Equal(t, batchID, gotBatch)
			require.Equal(t, 2, itemID)
			require.Equal(t, model.ItemCompleted, out.Status)
			require.Equal(t, "results/"+batchID+"/2.jpg", out.ResultKey)
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, fetcher: fetcher, resultPrefix: "results/"}

	require.NoError(t, w.processTask(ctx, task))
	require.True(t, reported)
}

// ределивери терминального айтема: без скачивания и обработки, но с репортом
func TestWorker_processTask_RedeliveredTerminalItem(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New().String()

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, srcURL string) (io.ReadCloser, error) {
			t.Fatal("terminal item must not be re-fetched")
			return nil, nil
		},
	}

	reported := false
	svc := &mockReporterService{
		getItemFn: func(ctx context.Context, gotBatch string, itemID int) (*model.Item, error) {
			return &model.Item{ID: itemID, Status: model.ItemCompleted, ResultKey: "results/x/0.jpg"}, nil
		},
		reportFn: func(ctx context.Context, gotBatch string, itemID int, out model.ItemOutcome) error {
			reported = true
			require.Equal(t, model.ItemCompleted, out.Status)
			require.Equal(t, "results/x/0.jpg", out.ResultKey)
			return nil
		},
	}

	w := &Worker{service: svc, fetcher: fetcher, resultPrefix: "results/"}

	require.NoError(t, w.processTask(ctx, &model.TaskPayload{BatchID: batchID, ID: 0, URL: "http://img.local/src.png"}))
	require.True(t, reported)
}

// ошибка скачивания - это Failed-исход айтема, а не ошибка воркера
func TestWorker_processTask_FetchErrorBecomesFailedOutcome(t *testing.T) {
	ctx := context.Background()

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, srcURL string) (io.ReadCloser, error) {
			return nil, errors.New("connection refused")
		},
	}

	var got model.ItemOutcome
	svc := &mockReporterService{
		getItemFn: func(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
			return &model.Item{ID: itemID, Status: model.ItemQueued}, nil
		},
		reportFn: func(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error {
			got = out
			return nil
		},
	}

	w := &Worker{service: svc, fetcher: fetcher, resultPrefix: "results/"}

	require.NoError(t, w.processTask(ctx, &model.TaskPayload{BatchID: uuid.New().String(), ID: 0, URL: "http://img.local/gone.png"}))
	require.Equal(t, model.ItemFailed, got.Status)
	require.Contains(t, got.ErrMsg, "connection refused")
}

// битая картинка - тоже Failed-исход
func TestWorker_processTask_BrokenImageBecomesFailedOutcome(t *testing.T) {
	ctx := context.Background()

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, srcURL string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("not-an-image")), nil
		},
	}

	var got model.ItemOutcome
	svc := &mockReporterService{
		getItemFn: func(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
			return &model.Item{ID: itemID, Status: model.ItemQueued}, nil
		},
		reportFn: func(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error {
			got = out
			return nil
		},
	}

	w := &Worker{service: svc, fetcher: fetcher, resultPrefix: "results/"}

	require.NoError(t, w.processTask(ctx, &model.TaskPayload{BatchID: uuid.New().String(), ID: 0, URL: "http://img.local/broken.png"}))
	require.Equal(t, model.ItemFailed, got.Status)
}

// фейл стореджа - инфраструктурный: айтем остается queued, таск вернется
func TestWorker_processTask_StorageErrorIsRetryable(t *testing.T) {
	ctx := context.Background()

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, srcURL string) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(validPNG())), nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}

	svc := &mockReporterService{
		getItemFn: func(ctx context.Context, batchID string, itemID int) (*model.Item, error) {
			return &model.Item{ID: itemID, Status: model.ItemQueued}, nil
		},
		reportFn: func(ctx context.Context, batchID string, itemID int, out model.ItemOutcome) error {
			t.Fatal("no outcome must be reported when storage put fails")
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, fetcher: fetcher, resultPrefix: "results/"}

	err := w.processTask(ctx, &model.TaskPayload{BatchID: uuid.New().String(), ID: 0, URL: "http://img.local/src.png"})
	require.Error(t, err)
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write(validPNG())
		default:
			w.WriteHeader(404)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second)

	body, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.Equal(t, validPNG(), data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
}

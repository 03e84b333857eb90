package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxSourceSize - потолок размера исходника, чтобы кривая ссылка не
// утащила в память гигабайтный файл
const maxSourceSize = 32 << 20

type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, srcURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %q: %w", srcURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", srcURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		closeFileFlow(resp.Body)
		return nil, fmt.Errorf("source %q answered %d", srcURL, resp.StatusCode)
	}

	return &limitedBody{Reader: io.LimitReader(resp.Body, maxSourceSize), body: resp.Body}, nil
}

type limitedBody struct {
	io.Reader
	body io.ReadCloser
}

func (l *limitedBody) Close() error {
	return l.body.Close()
}

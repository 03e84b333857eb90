// Package notifier delivers the finalized batch result to the external callback URL
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/UnendingLoop/ImageBatcher/internal/model"
	"github.com/wb-go/wbf/retry"
)

type WebhookNotifier struct {
	client   *http.Client
	strategy retry.Strategy
}

func NewWebhookNotifier(timeout time.Duration, strategy retry.Strategy) *WebhookNotifier {
	return &WebhookNotifier{
		client:   &http.Client{Timeout: timeout},
		strategy: strategy,
	}
}

// Notify - POST финального результата батча на notification_url с
// ограниченным ретраем. Не-2хх ответ считается фейлом доставки.
// Ошибка после исчерпания ретраев уходит наверх - вызывающий фиксирует
// notification_status, статус самого батча при этом не трогается.
func (n *WebhookNotifier) Notify(ctx context.Context, target string, payload *model.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		defer closeBody(resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("notification target answered %d", resp.StatusCode)
		}
		return nil
	}, n.strategy)
}

func closeBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		log.Println("Failed to drain notification response body:", err)
	}
	if err := body.Close(); err != nil {
		log.Println("Failed to close notification response body:", err)
	}
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/julianstephens/questbot/internal/constants"
)

// WebhookPayload is the JSON body posted for each reminder
type WebhookPayload struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// WebhookSender posts reminders to a chat gateway that owns the transport
type WebhookSender struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookSender(url, secret string) (*WebhookSender, error) {
	if url == "" {
		return nil, errors.New("webhook url is required for the webhook notifier")
	}
	return &WebhookSender{url: url, secret: secret, client: &http.Client{}}, nil
}

func (s *WebhookSender) Send(ctx context.Context, userID, text string) error {
	if err := post(ctx, s.client, s.url, s.secret, WebhookPayload{UserID: userID, Text: text}); err != nil {
		return deliveryError(userID, err)
	}
	return nil
}

// post sends payload as JSON and treats any non-200 answer as a failure
func post(ctx context.Context, client *http.Client, url, secret string, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(constants.WebhookSecretHeader, secret)
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, string(body))
}

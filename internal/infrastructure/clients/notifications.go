package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type NotificationsClient struct {
	baseURL string
	hc      *http.Client
}

func NewNotificationsClient(baseURL string) *NotificationsClient {
	return &NotificationsClient{
		baseURL: baseURL,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type SendNotificationRequest struct {
	UserId       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Type         string    `json:"type"`
	ReferenceKey string    `json:"reference_key,omitempty"`
}

func (c *NotificationsClient) Send(ctx context.Context, req SendNotificationRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code from notification service: %d", resp.StatusCode)
	}

	return nil
}

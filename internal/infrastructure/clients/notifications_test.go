package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsClient_Send(t *testing.T) {
	t.Run("delivers the payload", func(t *testing.T) {
		var got SendNotificationRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/notifications", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		userID := uuid.New()
		client := NewNotificationsClient(srv.URL)
		err := client.Send(context.Background(), SendNotificationRequest{
			UserId: userID,
			Title:  "Booking confirmed",
			Body:   "See you there!",
			Type:   "booking_confirmed",
		})
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserId)
		assert.Equal(t, "booking_confirmed", got.Type)
	})

	t.Run("rejection is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewNotificationsClient(srv.URL)
		err := client.Send(context.Background(), SendNotificationRequest{UserId: uuid.New()})
		assert.Error(t, err)
	})
}

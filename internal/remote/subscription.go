package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/logging"
	"github.com/bookyo/client/internal/models"
)

const onCreateNotificationSubscription = `subscription OnCreateNotification {
  onCreateNotification { id title body recipient read type createdAt }
}`

const (
	// Time allowed to write a message to the peer.
	subWriteWait = 10 * time.Second

	// Send pings to the peer with this period.
	subPingPeriod = 30 * time.Second
)

// wire frames for the realtime protocol.
type subFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subStartPayload struct {
	Query string `json:"query"`
}

type subDataPayload struct {
	Data struct {
		OnCreateNotification *models.Notification `json:"onCreateNotification"`
	} `json:"data"`
}

// SubscribeNotifications opens a push subscription for notification
// creation events. The returned channel is closed when ctx is cancelled or
// the connection drops; callers that need a durable stream reconnect and
// fall back to polling in between.
func (c *Client) SubscribeNotifications(ctx context.Context) (<-chan models.Notification, error) {
	header := make(map[string][]string)
	c.setAuthHeaders(header)

	conn, _, err := c.dialer.DialContext(ctx, c.realtime, header)
	if err != nil {
		return nil, classifyTransport("subscription dial failed", err)
	}

	start := subFrame{Type: "start", ID: "1"}
	payload, err := json.Marshal(subStartPayload{Query: onCreateNotificationSubscription})
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrInternal, "failed to encode subscription", err)
	}
	start.Payload = payload

	conn.SetWriteDeadline(time.Now().Add(subWriteWait))
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, classifyTransport("subscription start failed", err)
	}

	out := make(chan models.Notification)

	// Writer side: keepalive pings and teardown on cancellation.
	go func() {
		ticker := time.NewTicker(subPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(subWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(subWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	// Reader side: decode data frames and forward notifications.
	go func() {
		defer close(out)
		defer conn.Close()

		for {
			var frame subFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logging.Warn("Subscription connection closed unexpectedly",
						map[string]interface{}{"error": err.Error()})
				}
				return
			}

			if frame.Type != "data" {
				continue
			}

			var data subDataPayload
			if err := json.Unmarshal(frame.Payload, &data); err != nil {
				logging.Error("Failed to decode subscription payload", err)
				continue
			}
			if data.Data.OnCreateNotification == nil {
				continue
			}

			select {
			case out <- *data.Data.OnCreateNotification:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

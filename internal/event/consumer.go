package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/mahmudulhsn/shopping-cart/pkg/kafka"
)

// TopicUserLoggedOut is published by the identity service when a session ends.
const TopicUserLoggedOut = "ecommerce.user.logged_out"

// UserLoggedOutData is the payload of a user.logged_out event.
type UserLoggedOutData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

// LogoutHandler reacts to a finished session.
type LogoutHandler interface {
	HandleLogout(ctx context.Context, sessionID string) error
}

// NewLogoutHandler adapts h to a Kafka event handler. Events without a
// session id are logged and dropped.
func NewLogoutHandler(h LogoutHandler, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, event *pkgkafka.Event) error {
		var data UserLoggedOutData
		if err := event.UnmarshalData(&data); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		if data.SessionID == "" {
			logger.WarnContext(ctx, "logout event without session id",
				slog.String("event_id", event.EventID),
				slog.String("user_id", data.UserID),
			)
			return nil
		}

		if err := h.HandleLogout(ctx, data.SessionID); err != nil {
			return fmt.Errorf("handle logout for session %s: %w", data.SessionID, err)
		}
		return nil
	}
}

package services

import (
	"time"

	"couple-games-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// notificationEnvelope is the wire wrapper for fan-out events
type notificationEnvelope struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
}

// Notifier pushes one-shot typed events to every live connection of a user,
// independent of room membership. Pure push: no queuing for offline users,
// who reconcile against durable state (invitations, rooms) on reconnect.
type Notifier struct {
	registry *Registry
}

// NewNotifier creates a notifier over the given registry
func NewNotifier(registry *Registry) *Notifier {
	return &Notifier{registry: registry}
}

// Notify delivers the notification to all of the user's connections
func (n *Notifier) Notify(userID int64, notification *models.Notification) {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if !n.registry.IsOnline(userID) {
		log.Debug().
			Int64("user_id", userID).
			Str("type", notification.Type).
			Msg("Recipient offline, notification dropped")
		return
	}
	n.registry.SendToUser(userID, notificationEnvelope{
		Type:         "notification",
		Notification: notification,
	})
}

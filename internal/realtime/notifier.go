package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	EventJobStatus         = "job_status_update"
	EventJobUpdated        = "job_updated"
	EventQuotationAdded    = "quotation_added"
	EventQuotationStatus   = "quotation_status_update"
	EventNegotiation       = "negotiation_message"
	EventPaymentSucceeded  = "payment_succeeded"
	EventPaymentFailed     = "payment_failed"
	EventPaymentReview     = "payment_needs_review"
	EventWithdrawalStatus  = "withdrawal_status_update"
	EventWithdrawalCreated = "withdrawal_requested"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

// Notifier delivers domain events to participants. Delivery is best effort
// and never fails the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, eventType string, data interface{}, userIDs ...uuid.UUID)
}

// HubNotifier pushes to live websocket clients and publishes on
// notifications:<userID> for the external mailer.
type HubNotifier struct {
	Hub *Hub
	RDB *redis.Client
}

func NewHubNotifier(hub *Hub, rdb *redis.Client) *HubNotifier {
	return &HubNotifier{Hub: hub, RDB: rdb}
}

func (n *HubNotifier) Notify(ctx context.Context, eventType string, data interface{}, userIDs ...uuid.UUID) {
	ev := Event{Type: eventType, Data: data, At: time.Now().UTC()}

	var payload []byte
	if n.RDB != nil {
		b, err := json.Marshal(ev)
		if err != nil {
			log.WithError(err).WithField("event", eventType).Error("marshal notification")
			return
		}
		payload = b
	}

	seen := map[uuid.UUID]bool{}
	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true

		if n.Hub != nil {
			n.Hub.SendToUser(id, ev)
		}
		if n.RDB != nil {
			if err := n.RDB.Publish(ctx, "notifications:"+id.String(), payload).Err(); err != nil {
				log.WithError(err).WithFields(log.Fields{"event": eventType, "user": id}).Warn("publish notification")
			}
		}
	}
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, interface{}, ...uuid.UUID) {}

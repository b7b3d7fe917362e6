package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent records each gateway delivery once, keyed by the gateway's event id.
type WebhookEvent struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Gateway         string         `gorm:"type:varchar(20);not null;index:idx_webhook_gateway_event,unique,priority:1" json:"gateway"`
	EventID         string         `gorm:"type:varchar(191);not null;index:idx_webhook_gateway_event,unique,priority:2" json:"event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	IntentID        string         `gorm:"type:varchar(255);index" json:"intent_id"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

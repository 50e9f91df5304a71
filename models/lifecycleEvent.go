package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ardaops/kanban_backend/config"
	"github.com/ardaops/kanban_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleEventRecord is the transactional outbox for card lifecycle
// events: rows are written inside the transition's DB transaction and
// published to Pub/Sub by the outbox dispatcher after commit. A publish
// failure therefore never rolls back or fails an accepted transition.
type LifecycleEventRecord struct {
	ID            int                `gorm:"primary_key" json:"id"`
	BusinessId    string             `gorm:"size:64;not null;index" json:"business_id"`
	EventType     LifecycleEventType `gorm:"size:40;not null;index" json:"event_type"`
	CardId        int                `gorm:"not null;index" json:"card_id"`
	LoopId        int                `gorm:"not null" json:"loop_id"`
	OccurredAt    time.Time          `gorm:"not null" json:"occurred_at"`
	Payload       string             `gorm:"type:text;not null" json:"payload"`
	CorrelationId string             `gorm:"size:64;not null;index" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:20;not null;default:PENDING;index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Event payloads. Field sets are the published minimum; consumers must
// tolerate additions.

type TransitionEventPayload struct {
	TenantId  string           `json:"tenantId"`
	CardId    int              `json:"cardId"`
	LoopId    int              `json:"loopId"`
	FromStage CardStage        `json:"fromStage"`
	ToStage   CardStage        `json:"toStage"`
	Method    TransitionMethod `json:"method"`
}

type QueueEntryEventPayload struct {
	TenantId   string   `json:"tenantId"`
	LoopType   LoopType `json:"loopType"`
	PartId     int      `json:"partId"`
	FacilityId int      `json:"facilityId"`
}

type OrderLinkedEventPayload struct {
	TenantId  string          `json:"tenantId"`
	CardId    int             `json:"cardId"`
	OrderId   int             `json:"orderId"`
	OrderType LinkedOrderType `json:"orderType"`
}

// EnqueueLifecycleEvent writes one outbox row inside the caller's
// transaction. It does NOT publish; the dispatcher does that post-commit.
func EnqueueLifecycleEvent(tx *gorm.DB, businessId string, eventType LifecycleEventType, cardId int, loopId int, occurredAt time.Time, payload any, correlationId string) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := LifecycleEventRecord{
		BusinessId:    businessId,
		EventType:     eventType,
		CardId:        cardId,
		LoopId:        loopId,
		OccurredAt:    occurredAt,
		Payload:       string(payloadJSON),
		CorrelationId: correlationId,
		PublishStatus: OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

func CorrelationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ConvertToLifecycleMessage shapes an outbox row for the wire.
func ConvertToLifecycleMessage(rec LifecycleEventRecord) config.LifecycleMessage {
	return config.LifecycleMessage{
		ID:            rec.ID,
		BusinessId:    rec.BusinessId,
		EventType:     string(rec.EventType),
		CardId:        rec.CardId,
		LoopId:        rec.LoopId,
		OccurredAt:    rec.OccurredAt,
		Payload:       []byte(rec.Payload),
		CorrelationId: rec.CorrelationId,
	}
}

package models

import (
	"context"
	"time"

	"github.com/ardaops/kanban_backend/config"
	"gorm.io/gorm"
)

// CardTransition is one row of the append-only transition ledger. Rows
// are never updated or deleted; the unique (business, card, idempotency
// key) index makes duplicate-submission detection race-free at the
// storage layer rather than relying solely on the pre-write lookup.
type CardTransition struct {
	ID              int              `gorm:"primary_key" json:"id"`
	BusinessId      string           `gorm:"size:64;not null;index;index:uniq_card_idem,unique" json:"business_id"`
	CardId          int              `gorm:"not null;index;index:uniq_card_idem,unique" json:"card_id"`
	LoopId          int              `gorm:"not null;index" json:"loop_id"`
	CycleNumber     int              `gorm:"not null" json:"cycle_number"`
	FromStage       CardStage        `gorm:"size:20;not null" json:"from_stage"`
	ToStage         CardStage        `gorm:"size:20;not null" json:"to_stage"`
	TransitionedAt  time.Time        `gorm:"not null" json:"transitioned_at"`
	UserId          *int             `gorm:"index" json:"user_id"`
	Method          TransitionMethod `gorm:"size:10;not null" json:"method"`
	Notes           *string          `gorm:"type:text" json:"notes"`
	Metadata        *string          `gorm:"type:text" json:"metadata"`
	IdempotencyKey  *string          `gorm:"size:255;index:uniq_card_idem,unique" json:"idempotency_key"`
	CorrelationId   string           `gorm:"size:64;not null" json:"correlation_id"`
	LinkedOrderId   *int             `json:"linked_order_id"`
	LinkedOrderType *LinkedOrderType `gorm:"size:20" json:"linked_order_type"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// FindTransitionByIdempotencyKey returns the previously accepted
// transition carrying the key for this card/tenant, or nil when none
// exists. Used by the pre-write idempotency short-circuit.
func FindTransitionByIdempotencyKey(ctx context.Context, businessId string, cardId int, key string) (*CardTransition, error) {
	if key == "" {
		return nil, nil
	}
	db := config.GetDB()
	var transition CardTransition
	err := db.WithContext(ctx).
		Where("business_id = ? AND card_id = ? AND idempotency_key = ?", businessId, cardId, key).
		First(&transition).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transition, nil
}

// ListCardTransitions reads a page of the ledger for one card, newest first.
func ListCardTransitions(ctx context.Context, businessId string, cardId int, limit int, offset int) ([]*CardTransition, error) {
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	db := config.GetDB()
	var transitions []*CardTransition
	err := db.WithContext(ctx).
		Where("business_id = ? AND card_id = ?", businessId, cardId).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&transitions).Error
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

package kanban

import (
	"context"
	"fmt"
	"time"

	"github.com/ardaops/kanban_backend/models"
)

// Store is the narrow persistence gateway the orchestrator runs against.
// The production implementation is GormStore; tests substitute an
// in-memory fake.
type Store interface {
	// GetCard is an unscoped point lookup of a card and its loop, used by
	// the scan handler to distinguish a missing card from a tenant
	// mismatch and to name the destination queue from the same snapshot.
	GetCard(ctx context.Context, cardId int) (*models.KanbanCard, *models.KanbanLoop, error)

	// GetCardWithLoop is the tenant-scoped lookup the precondition chain
	// runs against. Returns utils.ErrorRecordNotFound when the card does
	// not exist under the tenant.
	GetCardWithLoop(ctx context.Context, businessId string, cardId int) (*models.KanbanCard, *models.KanbanLoop, error)

	// FindTransitionByKey returns the previously accepted transition for
	// the idempotency key, or nil when none exists.
	FindTransitionByKey(ctx context.Context, businessId string, cardId int, key string) (*models.CardTransition, error)

	// CommitTransition runs the atomic write: lock the card row, verify
	// its stage still matches write.FromStage, append the ledger row,
	// update the card projection, and enqueue the outbox events, all in
	// one transaction. replayed=true means a concurrent duplicate of the
	// same idempotency key won the unique-index race and the returned
	// rows are the pre-existing ones.
	CommitTransition(ctx context.Context, write *TransitionWrite) (card *models.KanbanCard, transition *models.CardTransition, replayed bool, err error)
}

// OutboxEvent is one lifecycle event to enqueue with the write.
type OutboxEvent struct {
	Type    models.LifecycleEventType
	Payload any
}

// TransitionWrite is the fully validated write descriptor handed to the
// store. The orchestrator owns all policy; the store owns atomicity.
type TransitionWrite struct {
	BusinessId string
	CardId     int
	LoopId     int

	FromStage models.CardStage
	ToStage   models.CardStage

	Method models.TransitionMethod
	UserId *int
	Notes  *string

	Metadata       map[string]any
	IdempotencyKey *string

	LinkedOrderId   *int
	LinkedOrderType *models.LinkedOrderType

	CycleNumber              int
	IncrementCompletedCycles bool

	TransitionedAt time.Time
	CorrelationId  string

	Events []OutboxEvent
}

// StaleStageError reports that the card's persisted stage no longer
// matched the stage the write assumed at lock time. Callers re-validate
// against Actual and may retry.
type StaleStageError struct {
	Actual models.CardStage
}

func (e *StaleStageError) Error() string {
	return fmt.Sprintf("card stage changed; now %q", e.Actual)
}

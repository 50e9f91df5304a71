package kanban

import (
	"context"
	"strconv"
	"time"

	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// Orchestrator is the single entry point for advancing a card through
// its lifecycle. All card mutation funnels through TransitionCard; the
// scan handler and replay processor are specialized callers.
type Orchestrator struct {
	store  Store
	logger *logrus.Logger
	locker *redislock.Client
}

// NewOrchestrator wires the orchestrator. locker may be nil; the Redis
// lock is a best-effort optimization and MySQL row locking remains the
// authority (same contract as the posting path it descends from).
func NewOrchestrator(store Store, logger *logrus.Logger, locker *redislock.Client) *Orchestrator {
	return &Orchestrator{store: store, logger: logger, locker: locker}
}

// TransitionInput carries one requested stage change.
type TransitionInput struct {
	BusinessId  string
	CardId      int
	TargetStage models.CardStage

	UserId *int
	Role   models.UserRole

	Method models.TransitionMethod
	Notes  *string

	Metadata map[string]any

	LinkedOrderId   *int
	LinkedOrderType *models.LinkedOrderType

	IdempotencyKey *string
}

// TransitionResult is the accepted outcome: the updated card projection,
// the appended ledger row, and the correlation id stamped on the emitted
// events. Replayed marks an idempotent short-circuit.
type TransitionResult struct {
	Card               *models.KanbanCard
	Transition         *models.CardTransition
	EventCorrelationId string
	Replayed           bool
}

// TransitionCard validates, persists, and emits events for one stage
// change. Preconditions are checked in a fixed order; the first failure
// wins. Event emission is transactional-outbox based, so an accepted
// transition is never failed or rolled back by a publish problem.
func (o *Orchestrator) TransitionCard(ctx context.Context, input *TransitionInput) (*TransitionResult, error) {
	card, loop, err := o.store.GetCardWithLoop(ctx, input.BusinessId, input.CardId)
	if err != nil {
		return nil, NewLifecycleError(CodeCardNotFound, "card %d not found", input.CardId)
	}
	if !utils.DereferencePtr(card.IsActive) {
		return nil, NewLifecycleError(CodeCardDeactivated, "card %d is deactivated", input.CardId)
	}

	// Idempotency short-circuit: a resubmitted key returns the persisted
	// result verbatim with no new write and no new events. It must run
	// before edge validation: the card has already advanced by the time a
	// retry arrives, and a replay is never re-validated against the
	// current stage.
	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		existing, err := o.store.FindTransitionByKey(ctx, input.BusinessId, input.CardId, *input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &TransitionResult{
				Card:               card,
				Transition:         existing,
				EventCorrelationId: existing.CorrelationId,
				Replayed:           true,
			}, nil
		}
	}

	from := card.CurrentStage
	to := input.TargetStage
	if !IsValidTransition(from, to) {
		return nil, NewLifecycleError(CodeInvalidTransition, "no edge from %q to %q", from, to)
	}
	if !o.roleAllowed(from, to, input) {
		return nil, NewLifecycleError(CodeRoleNotAllowed, "role %q may not move a card from %q to %q", input.Role, from, to)
	}
	if !IsLoopTypeAllowed(from, to, loop.LoopType) {
		return nil, NewLifecycleError(CodeLoopTypeIncompatible, "%s loops may not move from %q to %q", loop.LoopType, from, to)
	}
	if !IsMethodAllowed(from, to, input.Method) {
		return nil, NewLifecycleError(CodeMethodNotAllowed, "method %q may not move a card from %q to %q", input.Method, from, to)
	}
	if !IsLinkedOrderAccepted(from, to, input.LinkedOrderType) || (RuleFor(from, to).RequiresLinkedOrder && input.LinkedOrderId == nil) {
		return nil, NewLifecycleError(CodeMissingLinkedOrder, "moving from %q to %q requires a linked order", from, to)
	}

	increment := from == models.CardStageRestocked && to == models.CardStageTriggered
	cycle := card.CompletedCycles + 1
	if increment {
		cycle++
	}

	now := time.Now().UTC()
	correlationId := models.CorrelationIdFromContextOrNew(ctx)

	write := &TransitionWrite{
		BusinessId:               input.BusinessId,
		CardId:                   card.ID,
		LoopId:                   loop.ID,
		FromStage:                from,
		ToStage:                  to,
		Method:                   input.Method,
		UserId:                   input.UserId,
		Notes:                    input.Notes,
		Metadata:                 input.Metadata,
		IdempotencyKey:           input.IdempotencyKey,
		LinkedOrderId:            input.LinkedOrderId,
		LinkedOrderType:          input.LinkedOrderType,
		CycleNumber:              cycle,
		IncrementCompletedCycles: increment,
		TransitionedAt:           now,
		CorrelationId:            correlationId,
		Events:                   o.buildEvents(input, loop, from, to, now),
	}

	// Best-effort serialization per card. Redis being down must never
	// block a transition; the row lock in CommitTransition is the
	// authority.
	if o.locker != nil {
		lock, lerr := o.locker.Obtain(ctx, cardLockKey(input.BusinessId, card.ID), 5*time.Second, nil)
		if lerr == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	updatedCard, transition, replayed, err := o.store.CommitTransition(ctx, write)
	if err != nil {
		if stale, ok := err.(*StaleStageError); ok {
			// A concurrent transition won; report against the now-current
			// stage so the caller can re-validate and retry.
			return nil, NewLifecycleError(CodeInvalidTransition, "card stage is now %q; re-validate before retrying", stale.Actual)
		}
		if err == utils.ErrorRecordNotFound {
			return nil, NewLifecycleError(CodeCardNotFound, "card %d not found", input.CardId)
		}
		return nil, err
	}
	if replayed && o.logger != nil {
		o.logger.WithFields(logrus.Fields{
			"module":      "orchestrator",
			"business_id": input.BusinessId,
			"card_id":     card.ID,
		}).Info("duplicate transition collapsed at write time")
	}

	return &TransitionResult{
		Card:               updatedCard,
		Transition:         transition,
		EventCorrelationId: transition.CorrelationId,
		Replayed:           replayed,
	}, nil
}

func (o *Orchestrator) roleAllowed(from models.CardStage, to models.CardStage, input *TransitionInput) bool {
	if input.Role == "" {
		// Only unattended system transitions may omit the role.
		return input.Method == models.TransitionMethodSystem
	}
	return IsRoleAllowed(from, to, input.Role)
}

func (o *Orchestrator) buildEvents(input *TransitionInput, loop *models.KanbanLoop, from models.CardStage, to models.CardStage, occurredAt time.Time) []OutboxEvent {
	events := []OutboxEvent{
		{
			Type: models.LifecycleEventTransition,
			Payload: models.TransitionEventPayload{
				TenantId:  input.BusinessId,
				CardId:    input.CardId,
				LoopId:    loop.ID,
				FromStage: from,
				ToStage:   to,
				Method:    input.Method,
			},
		},
	}
	if to == models.CardStageTriggered {
		// Feeds the downstream order-creation queue.
		events = append(events, OutboxEvent{
			Type: models.LifecycleEventQueueEntry,
			Payload: models.QueueEntryEventPayload{
				TenantId:   input.BusinessId,
				LoopType:   loop.LoopType,
				PartId:     loop.PartId,
				FacilityId: loop.FacilityId,
			},
		})
	}
	if to == models.CardStageOrdered && input.LinkedOrderId != nil && input.LinkedOrderType != nil {
		events = append(events, OutboxEvent{
			Type: models.LifecycleEventOrderLinked,
			Payload: models.OrderLinkedEventPayload{
				TenantId:  input.BusinessId,
				CardId:    input.CardId,
				OrderId:   *input.LinkedOrderId,
				OrderType: *input.LinkedOrderType,
			},
		})
	}
	return events
}

func cardLockKey(businessId string, cardId int) string {
	return "cardlock:" + businessId + ":" + strconv.Itoa(cardId)
}

package kanban_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ardaops/kanban_backend/kanban"
	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
)

func newTestOrchestrator(store *fakeStore) *kanban.Orchestrator {
	return kanban.NewOrchestrator(store, nil, nil)
}

func TestTransitionHappyPathEmitsTransitionAndQueueEntry(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	result, err := orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:  testBusinessId,
		CardId:      10,
		TargetStage: models.CardStageTriggered,
		UserId:      utils.NewInt(7),
		Role:        models.RoleWarehouseStaff,
		Method:      models.TransitionMethodManual,
	})
	if err != nil {
		t.Fatalf("TransitionCard: %v", err)
	}
	if result.Card.CurrentStage != models.CardStageTriggered {
		t.Errorf("card stage = %s, expected triggered", result.Card.CurrentStage)
	}
	if result.Transition.FromStage != models.CardStageCreated || result.Transition.ToStage != models.CardStageTriggered {
		t.Errorf("transition edge = %s -> %s", result.Transition.FromStage, result.Transition.ToStage)
	}
	if result.Transition.CycleNumber != 1 {
		t.Errorf("cycle number = %d, expected 1", result.Transition.CycleNumber)
	}
	if result.Replayed {
		t.Error("fresh transition reported as replayed")
	}
	if result.EventCorrelationId == "" {
		t.Error("no correlation id on result")
	}

	if store.commits != 1 {
		t.Fatalf("commits = %d, expected 1", store.commits)
	}
	events := store.lastWrite.Events
	if len(events) != 2 {
		t.Fatalf("events = %d, expected transition + queue entry", len(events))
	}
	if events[0].Type != models.LifecycleEventTransition {
		t.Errorf("first event type = %s", events[0].Type)
	}
	if events[1].Type != models.LifecycleEventQueueEntry {
		t.Errorf("second event type = %s", events[1].Type)
	}
	queue, ok := events[1].Payload.(models.QueueEntryEventPayload)
	if !ok {
		t.Fatalf("queue entry payload has type %T", events[1].Payload)
	}
	if queue.LoopType != models.LoopTypeProcurement || queue.PartId != 1001 {
		t.Errorf("queue entry payload = %+v", queue)
	}
}

func TestTransitionWithSameKeyIsReplayedWithoutASecondWrite(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	key := "scan-abc"
	input := &kanban.TransitionInput{
		BusinessId:     testBusinessId,
		CardId:         10,
		TargetStage:    models.CardStageTriggered,
		Role:           models.RoleWarehouseStaff,
		Method:         models.TransitionMethodQrScan,
		IdempotencyKey: &key,
	}

	first, err := orch.TransitionCard(context.Background(), input)
	if err != nil {
		t.Fatalf("first TransitionCard: %v", err)
	}

	second, err := orch.TransitionCard(context.Background(), input)
	if err != nil {
		t.Fatalf("second TransitionCard: %v", err)
	}
	if !second.Replayed {
		t.Error("resubmission not reported as replayed")
	}
	if second.Transition.ID != first.Transition.ID {
		t.Errorf("replay returned transition %d, expected %d", second.Transition.ID, first.Transition.ID)
	}
	if second.EventCorrelationId != first.Transition.CorrelationId {
		t.Errorf("replay correlation id = %q, expected the stored %q", second.EventCorrelationId, first.Transition.CorrelationId)
	}
	if store.commits != 1 {
		t.Errorf("commits = %d, expected 1 (replay must not write)", store.commits)
	}
}

func TestResubmittedKeyIsNotRevalidated(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	scanKey := "scan-abc"
	scan := &kanban.TransitionInput{
		BusinessId:     testBusinessId,
		CardId:         10,
		TargetStage:    models.CardStageTriggered,
		Role:           models.RoleWarehouseStaff,
		Method:         models.TransitionMethodQrScan,
		IdempotencyKey: &scanKey,
	}
	first, err := orch.TransitionCard(context.Background(), scan)
	if err != nil {
		t.Fatalf("scan transition: %v", err)
	}

	// Card moves on: triggered -> ordered under a different actor.
	orderId := 900
	orderKey := "order-xyz"
	if _, err := orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:      testBusinessId,
		CardId:          10,
		TargetStage:     models.CardStageOrdered,
		Role:            models.RoleBuyer,
		Method:          models.TransitionMethodManual,
		LinkedOrderId:   &orderId,
		LinkedOrderType: linkedOrderType(models.LinkedOrderTypePurchaseOrder),
		IdempotencyKey:  &orderKey,
	}); err != nil {
		t.Fatalf("ordering transition: %v", err)
	}

	// The retried scan would fail every edge/method check against the
	// current stage; it must come back as the stored result instead.
	replay, err := orch.TransitionCard(context.Background(), scan)
	if err != nil {
		t.Fatalf("resubmitted scan: %v", err)
	}
	if !replay.Replayed {
		t.Error("resubmission not reported as replayed")
	}
	if replay.Transition.ID != first.Transition.ID {
		t.Errorf("replay returned transition %d, expected %d", replay.Transition.ID, first.Transition.ID)
	}
	if store.commits != 2 {
		t.Errorf("commits = %d, expected 2 (replay must not write)", store.commits)
	}
}

func TestPreconditionsRejectInOrder(t *testing.T) {
	buyer := models.RoleBuyer

	cases := []struct {
		name     string
		stage    models.CardStage
		loopType models.LoopType
		inactive bool
		missing  bool
		input    kanban.TransitionInput
		expected kanban.ErrorCode
	}{
		{
			name:    "missing card",
			missing: true,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageTriggered,
				Role:        models.RoleOperator,
				Method:      models.TransitionMethodManual,
			},
			expected: kanban.CodeCardNotFound,
		},
		{
			name:     "deactivated card wins over invalid edge",
			stage:    models.CardStageCreated,
			loopType: models.LoopTypeProcurement,
			inactive: true,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageRestocked,
				Role:        models.RoleOperator,
				Method:      models.TransitionMethodManual,
			},
			expected: kanban.CodeCardDeactivated,
		},
		{
			name:     "invalid edge wins over role",
			stage:    models.CardStageCreated,
			loopType: models.LoopTypeProcurement,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageRestocked,
				Role:        buyer,
				Method:      models.TransitionMethodManual,
			},
			expected: kanban.CodeInvalidTransition,
		},
		{
			name:     "role not allowed",
			stage:    models.CardStageCreated,
			loopType: models.LoopTypeProcurement,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageTriggered,
				Role:        buyer,
				Method:      models.TransitionMethodManual,
			},
			expected: kanban.CodeRoleNotAllowed,
		},
		{
			name:     "loop type incompatible",
			stage:    models.CardStageOrdered,
			loopType: models.LoopTypeProduction,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageInTransit,
				Role:        models.RoleOperator,
				Method:      models.TransitionMethodManual,
			},
			expected: kanban.CodeLoopTypeIncompatible,
		},
		{
			name:     "method not allowed",
			stage:    models.CardStageReceived,
			loopType: models.LoopTypeProcurement,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageRestocked,
				Role:        models.RoleOperator,
				Method:      models.TransitionMethodQrScan,
			},
			expected: kanban.CodeMethodNotAllowed,
		},
		{
			name:     "missing linked order",
			stage:    models.CardStageTriggered,
			loopType: models.LoopTypeProcurement,
			input: kanban.TransitionInput{
				TargetStage: models.CardStageOrdered,
				Role:        models.RoleOperator,
				Method:      models.TransitionMethodManual,
			},
			expected: kanban.CodeMissingLinkedOrder,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			store.addLoop(1, tc.loopType)
			if !tc.missing {
				card := store.addCard(10, 1, tc.stage)
				if tc.inactive {
					card.IsActive = utils.NewFalse()
				}
			}
			orch := newTestOrchestrator(store)

			input := tc.input
			input.BusinessId = testBusinessId
			input.CardId = 10

			_, err := orch.TransitionCard(context.Background(), &input)
			if err == nil {
				t.Fatal("expected a rejection")
			}
			if code := kanban.CodeOf(err); code != tc.expected {
				t.Errorf("code = %s, expected %s", code, tc.expected)
			}
			if store.commits != 0 {
				t.Errorf("rejected request reached the store (%d commits)", store.commits)
			}
		})
	}
}

func TestRestockedToTriggeredStartsANewCycle(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	card := store.addCard(10, 1, models.CardStageRestocked)
	card.CompletedCycles = 1
	orch := newTestOrchestrator(store)

	result, err := orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:  testBusinessId,
		CardId:      10,
		TargetStage: models.CardStageTriggered,
		Role:        models.RolePlanner,
		Method:      models.TransitionMethodManual,
	})
	if err != nil {
		t.Fatalf("TransitionCard: %v", err)
	}
	if result.Card.CompletedCycles != 2 {
		t.Errorf("completed cycles = %d, expected 2", result.Card.CompletedCycles)
	}
	if result.Transition.CycleNumber != 3 {
		t.Errorf("cycle number = %d, expected 3", result.Transition.CycleNumber)
	}

	// Any other edge leaves the counter alone.
	result, err = orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:      testBusinessId,
		CardId:          10,
		TargetStage:     models.CardStageOrdered,
		Role:            models.RoleBuyer,
		Method:          models.TransitionMethodManual,
		LinkedOrderId:   utils.NewInt(555),
		LinkedOrderType: linkedOrderType(models.LinkedOrderTypePurchaseOrder),
	})
	if err != nil {
		t.Fatalf("TransitionCard (ordered): %v", err)
	}
	if result.Card.CompletedCycles != 2 {
		t.Errorf("completed cycles = %d after ordering, expected 2", result.Card.CompletedCycles)
	}
}

func TestOrderingEmitsOrderLinkedEvent(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageTriggered)
	orch := newTestOrchestrator(store)

	result, err := orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:      testBusinessId,
		CardId:          10,
		TargetStage:     models.CardStageOrdered,
		Role:            models.RoleBuyer,
		Method:          models.TransitionMethodManual,
		LinkedOrderId:   utils.NewInt(555),
		LinkedOrderType: linkedOrderType(models.LinkedOrderTypePurchaseOrder),
	})
	if err != nil {
		t.Fatalf("TransitionCard: %v", err)
	}
	if result.Card.LinkedOrderId == nil || *result.Card.LinkedOrderId != 555 {
		t.Errorf("card linked order = %v, expected 555", result.Card.LinkedOrderId)
	}

	events := store.lastWrite.Events
	if len(events) != 2 {
		t.Fatalf("events = %d, expected transition + order linked", len(events))
	}
	linked, ok := events[1].Payload.(models.OrderLinkedEventPayload)
	if !ok {
		t.Fatalf("order linked payload has type %T", events[1].Payload)
	}
	if linked.OrderId != 555 || linked.OrderType != models.LinkedOrderTypePurchaseOrder {
		t.Errorf("order linked payload = %+v", linked)
	}
}

func TestStaleStageSurfacesAsInvalidTransition(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	store.commitErr = &kanban.StaleStageError{Actual: models.CardStageTriggered}
	orch := newTestOrchestrator(store)

	_, err := orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:  testBusinessId,
		CardId:      10,
		TargetStage: models.CardStageTriggered,
		Role:        models.RoleOperator,
		Method:      models.TransitionMethodManual,
	})
	if err == nil {
		t.Fatal("expected a rejection")
	}
	if code := kanban.CodeOf(err); code != kanban.CodeInvalidTransition {
		t.Errorf("code = %s, expected INVALID_TRANSITION", code)
	}
	if !strings.Contains(err.Error(), string(models.CardStageTriggered)) {
		t.Errorf("error %q does not name the current stage", err.Error())
	}
}

func TestEmptyRoleOnlyPassesForSystemTransitions(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	_, err := orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:  testBusinessId,
		CardId:      10,
		TargetStage: models.CardStageTriggered,
		Method:      models.TransitionMethodManual,
	})
	if code := kanban.CodeOf(err); code != kanban.CodeRoleNotAllowed {
		t.Errorf("manual without role: code = %s, expected ROLE_NOT_ALLOWED", code)
	}

	_, err = orch.TransitionCard(context.Background(), &kanban.TransitionInput{
		BusinessId:  testBusinessId,
		CardId:      10,
		TargetStage: models.CardStageTriggered,
		Method:      models.TransitionMethodSystem,
	})
	if err != nil {
		t.Errorf("system without role rejected: %v", err)
	}
}

func linkedOrderType(t models.LinkedOrderType) *models.LinkedOrderType {
	return &t
}

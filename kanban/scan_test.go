package kanban_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ardaops/kanban_backend/kanban"
	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
)

func TestScanRoutesCardToTheLoopTypeQueue(t *testing.T) {
	cases := []struct {
		loopType models.LoopType
		message  string
	}{
		{models.LoopTypeProcurement, "Order Queue"},
		{models.LoopTypeProduction, "Production Queue"},
		{models.LoopTypeTransfer, "Transfer Queue"},
	}
	for _, tc := range cases {
		t.Run(string(tc.loopType), func(t *testing.T) {
			store := newFakeStore()
			loop := store.addLoop(1, tc.loopType)
			if tc.loopType == models.LoopTypeTransfer {
				loop.SourceFacilityId = utils.NewInt(2)
			}
			store.addCard(10, 1, models.CardStageCreated)
			orch := newTestOrchestrator(store)

			result, err := orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
				BusinessId: testBusinessId,
				CardId:     10,
				Role:       models.RoleWarehouseStaff,
			})
			if err != nil {
				t.Fatalf("TriggerCardByScan: %v", err)
			}
			if result.Card.CurrentStage != models.CardStageTriggered {
				t.Errorf("card stage = %s, expected triggered", result.Card.CurrentStage)
			}
			if result.LoopType != tc.loopType {
				t.Errorf("loop type = %s, expected %s", result.LoopType, tc.loopType)
			}
			if !strings.Contains(result.Message, tc.message) {
				t.Errorf("message %q does not mention %q", result.Message, tc.message)
			}

			events := store.lastWrite.Events
			if len(events) != 2 || events[1].Type != models.LifecycleEventQueueEntry {
				t.Errorf("scan did not enqueue a queue entry event: %+v", events)
			}
			if store.cardFetches != 1 {
				t.Errorf("card fetches = %d, expected 1 (conflict check and queue routing share one snapshot)", store.cardFetches)
			}
		})
	}
}

func TestScanConflictNamesTheActualStage(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageOrdered)
	orch := newTestOrchestrator(store)

	_, err := orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
		BusinessId: testBusinessId,
		CardId:     10,
		Role:       models.RoleWarehouseStaff,
	})
	if err == nil {
		t.Fatal("expected a rejection")
	}
	if code := kanban.CodeOf(err); code != kanban.CodeScanConflict {
		t.Errorf("code = %s, expected SCAN_CONFLICT", code)
	}
	if !strings.Contains(err.Error(), string(models.CardStageOrdered)) {
		t.Errorf("error %q does not name the actual stage", err.Error())
	}
	if store.commits != 0 {
		t.Errorf("conflicting scan reached the store (%d commits)", store.commits)
	}
}

func TestScanRejectsForeignTenantBeforeStageLogic(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	card := store.addCard(10, 1, models.CardStageCreated)
	card.BusinessId = "other-biz"
	orch := newTestOrchestrator(store)

	_, err := orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
		BusinessId: testBusinessId,
		CardId:     10,
		Role:       models.RoleWarehouseStaff,
	})
	if code := kanban.CodeOf(err); code != kanban.CodeTenantMismatch {
		t.Errorf("code = %s, expected TENANT_MISMATCH", code)
	}
}

func TestScanMissingAndDeactivatedCards(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	orch := newTestOrchestrator(store)

	_, err := orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
		BusinessId: testBusinessId,
		CardId:     99,
		Role:       models.RoleWarehouseStaff,
	})
	if code := kanban.CodeOf(err); code != kanban.CodeCardNotFound {
		t.Errorf("code = %s, expected CARD_NOT_FOUND", code)
	}

	card := store.addCard(10, 1, models.CardStageCreated)
	card.IsActive = utils.NewFalse()
	_, err = orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
		BusinessId: testBusinessId,
		CardId:     10,
		Role:       models.RoleWarehouseStaff,
	})
	if code := kanban.CodeOf(err); code != kanban.CodeCardDeactivated {
		t.Errorf("code = %s, expected CARD_DEACTIVATED", code)
	}
}

func TestScanWithUsedKeyOnMovedCardIsAConflict(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	key := "device-key-1"
	if _, err := orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
		BusinessId:     testBusinessId,
		CardId:         10,
		Role:           models.RoleWarehouseStaff,
		IdempotencyKey: &key,
	}); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// The card moved on; the same key must now conflict instead of
	// silently replaying a stale result.
	_, err := orch.TriggerCardByScan(context.Background(), &kanban.ScanInput{
		BusinessId:     testBusinessId,
		CardId:         10,
		Role:           models.RoleWarehouseStaff,
		IdempotencyKey: &key,
	})
	if code := kanban.CodeOf(err); code != kanban.CodeScanConflict {
		t.Errorf("code = %s, expected SCAN_CONFLICT", code)
	}
}

package kanban_test

import (
	"context"
	"testing"

	"github.com/ardaops/kanban_backend/kanban"
	"github.com/ardaops/kanban_backend/models"
)

func TestReplayBatchContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	store.addCard(11, 1, models.CardStageTriggered) // moved on since capture
	store.addCard(12, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	items := []kanban.ScanReplayItem{
		{CardId: 10, IdempotencyKey: "k-10"},
		{CardId: 11, IdempotencyKey: "k-11"},
		{CardId: 12, IdempotencyKey: "k-12"},
	}
	results := orch.ReplayScans(context.Background(), testBusinessId, nil, models.RoleWarehouseStaff, items)

	if len(results) != len(items) {
		t.Fatalf("results = %d, expected %d", len(results), len(items))
	}
	if !results[0].Success || !results[2].Success {
		t.Errorf("surrounding items failed: %+v", results)
	}
	if results[1].Success {
		t.Error("item for the moved card succeeded")
	}
	if results[1].ErrorCode != kanban.CodeScanDuplicate {
		t.Errorf("failed item code = %s, expected SCAN_DUPLICATE", results[1].ErrorCode)
	}
	for i, r := range results {
		if !r.WasReplay {
			t.Errorf("results[%d].WasReplay = false", i)
		}
	}
	if store.commits != 2 {
		t.Errorf("commits = %d, expected 2", store.commits)
	}
}

func TestReplayAppliesItemsInCaptureOrder(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	// The same card scanned twice offline: the first item triggers it,
	// the second is a duplicate of a card that has already moved.
	items := []kanban.ScanReplayItem{
		{CardId: 10, IdempotencyKey: "k-a"},
		{CardId: 10, IdempotencyKey: "k-b"},
	}
	results := orch.ReplayScans(context.Background(), testBusinessId, nil, models.RoleWarehouseStaff, items)

	if !results[0].Success {
		t.Errorf("first scan failed: %+v", results[0])
	}
	if results[1].Success || results[1].ErrorCode != kanban.CodeScanDuplicate {
		t.Errorf("second scan = %+v, expected SCAN_DUPLICATE", results[1])
	}
}

func TestReplayResubmittedBatchIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addLoop(1, models.LoopTypeProcurement)
	store.addCard(10, 1, models.CardStageCreated)
	orch := newTestOrchestrator(store)

	items := []kanban.ScanReplayItem{{CardId: 10, IdempotencyKey: "k-1"}}
	first := orch.ReplayScans(context.Background(), testBusinessId, nil, models.RoleWarehouseStaff, items)
	if !first[0].Success {
		t.Fatalf("first upload failed: %+v", first[0])
	}

	// Uploading the identical batch again: the card is no longer in
	// created, so the item reports as a duplicate, and nothing is written.
	second := orch.ReplayScans(context.Background(), testBusinessId, nil, models.RoleWarehouseStaff, items)
	if second[0].Success {
		t.Errorf("resubmitted item succeeded a second time: %+v", second[0])
	}
	if second[0].ErrorCode != kanban.CodeScanDuplicate {
		t.Errorf("resubmitted item code = %s, expected SCAN_DUPLICATE", second[0].ErrorCode)
	}
	if store.commits != 1 {
		t.Errorf("commits = %d, expected 1", store.commits)
	}
}

func TestReplayEmptyBatch(t *testing.T) {
	orch := newTestOrchestrator(newFakeStore())
	results := orch.ReplayScans(context.Background(), testBusinessId, nil, models.RoleWarehouseStaff, nil)
	if len(results) != 0 {
		t.Errorf("results = %d, expected 0", len(results))
	}
}

package kanban_test

import (
	"testing"

	"github.com/ardaops/kanban_backend/kanban"
	"github.com/ardaops/kanban_backend/models"
)

func TestRuleTableCoversExactlyTheLifecycleEdges(t *testing.T) {
	legal := map[[2]models.CardStage]bool{
		{models.CardStageCreated, models.CardStageTriggered}:   true,
		{models.CardStageTriggered, models.CardStageOrdered}:   true,
		{models.CardStageOrdered, models.CardStageInTransit}:   true,
		{models.CardStageOrdered, models.CardStageReceived}:    true,
		{models.CardStageInTransit, models.CardStageReceived}:  true,
		{models.CardStageReceived, models.CardStageRestocked}:  true,
		{models.CardStageRestocked, models.CardStageTriggered}: true,
	}

	for _, from := range models.AllCardStages() {
		for _, to := range models.AllCardStages() {
			expected := legal[[2]models.CardStage{from, to}]
			if got := kanban.IsValidTransition(from, to); got != expected {
				t.Errorf("IsValidTransition(%s, %s) = %v, expected %v", from, to, got, expected)
			}
		}
	}

	if len(kanban.Rules()) != len(legal) {
		t.Fatalf("rule table has %d edges, expected %d", len(kanban.Rules()), len(legal))
	}
}

func TestUnknownStagesAreNeverValid(t *testing.T) {
	if kanban.IsValidTransition("bogus", models.CardStageTriggered) {
		t.Error("unknown from-stage accepted")
	}
	if kanban.IsValidTransition(models.CardStageCreated, "bogus") {
		t.Error("unknown to-stage accepted")
	}
	if kanban.IsRoleAllowed("bogus", models.CardStageTriggered, models.RoleOperator) {
		t.Error("operator bypass must not apply to a nonexistent edge")
	}
	if kanban.IsLoopTypeAllowed("bogus", "bogus", models.LoopTypeProcurement) {
		t.Error("unknown edge passed loop type check")
	}
	if kanban.IsMethodAllowed("bogus", "bogus", models.TransitionMethodManual) {
		t.Error("unknown edge passed method check")
	}
}

func TestOperatorBypassesRoleCheckOnEveryEdge(t *testing.T) {
	for _, rule := range kanban.Rules() {
		if !kanban.IsRoleAllowed(rule.From, rule.To, models.RoleOperator) {
			t.Errorf("operator rejected on edge %s -> %s", rule.From, rule.To)
		}
	}
}

func TestQrScanOnlyDrivesCreatedToTriggered(t *testing.T) {
	for _, rule := range kanban.Rules() {
		scanOk := kanban.IsMethodAllowed(rule.From, rule.To, models.TransitionMethodQrScan)
		isTriggerEdge := rule.From == models.CardStageCreated && rule.To == models.CardStageTriggered
		if scanOk != isTriggerEdge {
			t.Errorf("qr_scan on edge %s -> %s: got %v, expected %v", rule.From, rule.To, scanOk, isTriggerEdge)
		}
		if !kanban.IsMethodAllowed(rule.From, rule.To, models.TransitionMethodManual) {
			t.Errorf("manual rejected on edge %s -> %s", rule.From, rule.To)
		}
		if !kanban.IsMethodAllowed(rule.From, rule.To, models.TransitionMethodSystem) {
			t.Errorf("system rejected on edge %s -> %s", rule.From, rule.To)
		}
	}
}

func TestLoopTypeGatesTheShippingLeg(t *testing.T) {
	cases := []struct {
		from     models.CardStage
		to       models.CardStage
		loopType models.LoopType
		expected bool
	}{
		{models.CardStageOrdered, models.CardStageInTransit, models.LoopTypeProcurement, true},
		{models.CardStageOrdered, models.CardStageInTransit, models.LoopTypeTransfer, true},
		{models.CardStageOrdered, models.CardStageInTransit, models.LoopTypeProduction, false},
		{models.CardStageOrdered, models.CardStageReceived, models.LoopTypeProduction, true},
		{models.CardStageOrdered, models.CardStageReceived, models.LoopTypeProcurement, false},
		{models.CardStageOrdered, models.CardStageReceived, models.LoopTypeTransfer, false},
		{models.CardStageInTransit, models.CardStageReceived, models.LoopTypeProcurement, true},
		{models.CardStageInTransit, models.CardStageReceived, models.LoopTypeTransfer, true},
		{models.CardStageCreated, models.CardStageTriggered, models.LoopTypeProduction, true},
	}
	for _, tc := range cases {
		if got := kanban.IsLoopTypeAllowed(tc.from, tc.to, tc.loopType); got != tc.expected {
			t.Errorf("IsLoopTypeAllowed(%s, %s, %s) = %v, expected %v", tc.from, tc.to, tc.loopType, got, tc.expected)
		}
	}
}

func TestOrderingEdgeRequiresALinkedOrder(t *testing.T) {
	from, to := models.CardStageTriggered, models.CardStageOrdered

	if kanban.IsLinkedOrderAccepted(from, to, nil) {
		t.Error("ordering without a linked order type accepted")
	}
	for _, orderType := range []models.LinkedOrderType{
		models.LinkedOrderTypePurchaseOrder,
		models.LinkedOrderTypeWorkOrder,
		models.LinkedOrderTypeTransferOrder,
	} {
		ot := orderType
		if !kanban.IsLinkedOrderAccepted(from, to, &ot) {
			t.Errorf("order type %s rejected on %s -> %s", ot, from, to)
		}
	}

	// Edges without the requirement accept a missing order.
	if !kanban.IsLinkedOrderAccepted(models.CardStageCreated, models.CardStageTriggered, nil) {
		t.Error("trigger edge must not demand a linked order")
	}
}

package kanban

import "github.com/ardaops/kanban_backend/models"

// TransitionRule is a single allowed edge in the card lifecycle state
// machine, with the policy dimensions the orchestrator checks: who may
// drive the edge, for which loop types, by which method, and whether a
// linked external order must accompany it.
type TransitionRule struct {
	From models.CardStage
	To   models.CardStage

	// AllowedRoles never needs to list RoleOperator; operators bypass
	// the role check on every edge.
	AllowedRoles     []models.UserRole
	AllowedLoopTypes []models.LoopType
	AllowedMethods   []models.TransitionMethod

	// RequiresLinkedOrder demands one of LinkedOrderTypes on the request.
	RequiresLinkedOrder bool
	LinkedOrderTypes    []models.LinkedOrderType
}

var allLoopTypes = []models.LoopType{
	models.LoopTypeProcurement,
	models.LoopTypeProduction,
	models.LoopTypeTransfer,
}

// transitionRules is the full rule table. Exactly one rule per legal
// edge; the cycle is created → triggered → ordered → (in_transit →)
// received → restocked → triggered, with no backward edges.
var transitionRules = []TransitionRule{
	{
		From: models.CardStageCreated,
		To:   models.CardStageTriggered,
		AllowedRoles: []models.UserRole{
			models.RoleWarehouseStaff, models.RolePlanner, models.RoleManager, models.RoleAdmin,
		},
		AllowedLoopTypes: allLoopTypes,
		// The only edge a physical QR scan may drive.
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodQrScan, models.TransitionMethodSystem,
		},
	},
	{
		From: models.CardStageTriggered,
		To:   models.CardStageOrdered,
		AllowedRoles: []models.UserRole{
			models.RoleBuyer, models.RolePlanner, models.RoleManager, models.RoleAdmin,
		},
		AllowedLoopTypes: allLoopTypes,
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodSystem,
		},
		RequiresLinkedOrder: true,
		LinkedOrderTypes: []models.LinkedOrderType{
			models.LinkedOrderTypePurchaseOrder, models.LinkedOrderTypeWorkOrder, models.LinkedOrderTypeTransferOrder,
		},
	},
	{
		From: models.CardStageOrdered,
		To:   models.CardStageInTransit,
		AllowedRoles: []models.UserRole{
			models.RoleBuyer, models.RoleWarehouseStaff, models.RoleManager, models.RoleAdmin,
		},
		// In-house production has no shipping leg; production loops go
		// ordered → received directly.
		AllowedLoopTypes: []models.LoopType{
			models.LoopTypeProcurement, models.LoopTypeTransfer,
		},
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodSystem,
		},
	},
	{
		From: models.CardStageOrdered,
		To:   models.CardStageReceived,
		AllowedRoles: []models.UserRole{
			models.RoleWarehouseStaff, models.RolePlanner, models.RoleManager, models.RoleAdmin,
		},
		AllowedLoopTypes: []models.LoopType{
			models.LoopTypeProduction,
		},
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodSystem,
		},
	},
	{
		From: models.CardStageInTransit,
		To:   models.CardStageReceived,
		AllowedRoles: []models.UserRole{
			models.RoleWarehouseStaff, models.RoleManager, models.RoleAdmin,
		},
		AllowedLoopTypes: []models.LoopType{
			models.LoopTypeProcurement, models.LoopTypeTransfer,
		},
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodSystem,
		},
	},
	{
		From: models.CardStageReceived,
		To:   models.CardStageRestocked,
		AllowedRoles: []models.UserRole{
			models.RoleWarehouseStaff, models.RoleManager, models.RoleAdmin,
		},
		AllowedLoopTypes: allLoopTypes,
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodSystem,
		},
	},
	{
		From: models.CardStageRestocked,
		To:   models.CardStageTriggered,
		AllowedRoles: []models.UserRole{
			models.RoleWarehouseStaff, models.RolePlanner, models.RoleManager, models.RoleAdmin,
		},
		AllowedLoopTypes: allLoopTypes,
		AllowedMethods: []models.TransitionMethod{
			models.TransitionMethodManual, models.TransitionMethodSystem,
		},
	},
}

// Rules returns the full transition rule table.
func Rules() []TransitionRule {
	return transitionRules
}

// RuleFor finds the rule covering (from, to), or nil when the edge is
// not in the state machine.
func RuleFor(from models.CardStage, to models.CardStage) *TransitionRule {
	for i := range transitionRules {
		if transitionRules[i].From == from && transitionRules[i].To == to {
			return &transitionRules[i]
		}
	}
	return nil
}

package models

// CardStage is the lifecycle state of a kanban card. The stage set is
// fixed; edges between stages are defined by the kanban rule table.
type CardStage string

const (
	CardStageCreated   CardStage = "created"
	CardStageTriggered CardStage = "triggered"
	CardStageOrdered   CardStage = "ordered"
	CardStageInTransit CardStage = "in_transit"
	CardStageReceived  CardStage = "received"
	CardStageRestocked CardStage = "restocked"
)

// AllCardStages returns the stages in cycle order.
func AllCardStages() []CardStage {
	return []CardStage{
		CardStageCreated,
		CardStageTriggered,
		CardStageOrdered,
		CardStageInTransit,
		CardStageReceived,
		CardStageRestocked,
	}
}

func (s CardStage) IsValid() bool {
	switch s {
	case CardStageCreated, CardStageTriggered, CardStageOrdered,
		CardStageInTransit, CardStageReceived, CardStageRestocked:
		return true
	}
	return false
}

// LoopType selects the replenishment policy of a loop and constrains
// which transition edges are legal for its cards.
type LoopType string

const (
	LoopTypeProcurement LoopType = "procurement"
	LoopTypeProduction  LoopType = "production"
	LoopTypeTransfer    LoopType = "transfer"
)

func (t LoopType) IsValid() bool {
	switch t {
	case LoopTypeProcurement, LoopTypeProduction, LoopTypeTransfer:
		return true
	}
	return false
}

type CardMode string

const (
	CardModeSingle CardMode = "single"
	CardModeMulti  CardMode = "multi"
)

func (m CardMode) IsValid() bool {
	return m == CardModeSingle || m == CardModeMulti
}

// TransitionMethod records how a stage change was triggered.
type TransitionMethod string

const (
	TransitionMethodManual TransitionMethod = "manual"
	TransitionMethodQrScan TransitionMethod = "qr_scan"
	TransitionMethodSystem TransitionMethod = "system"
)

// LinkedOrderType names the external order document a transition may
// reference. The documents themselves live in the procurement system;
// this core stores references only.
type LinkedOrderType string

const (
	LinkedOrderTypePurchaseOrder LinkedOrderType = "purchase_order"
	LinkedOrderTypeWorkOrder     LinkedOrderType = "work_order"
	LinkedOrderTypeTransferOrder LinkedOrderType = "transfer_order"
)

// UserRole is the resolved role string supplied by the auth layer.
// RoleOperator bypasses per-edge role checks unconditionally.
type UserRole string

const (
	RoleOperator       UserRole = "operator"
	RoleBuyer          UserRole = "buyer"
	RolePlanner        UserRole = "planner"
	RoleWarehouseStaff UserRole = "warehouse_staff"
	RoleManager        UserRole = "manager"
	RoleAdmin          UserRole = "admin"
)

// LifecycleEventType tags an outbox event row.
type LifecycleEventType string

const (
	LifecycleEventTransition  LifecycleEventType = "lifecycle.transition"
	LifecycleEventQueueEntry  LifecycleEventType = "lifecycle.queue_entry"
	LifecycleEventOrderLinked LifecycleEventType = "lifecycle.order_linked"
)

// Outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

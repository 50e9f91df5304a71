package kanban

import (
	"context"

	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
)

// ScanInput is one decoded QR scan. The card id and the scanning
// tenant come from the token, not from the QR payload, so a card
// belonging to another business is rejected before any stage logic.
type ScanInput struct {
	BusinessId     string
	CardId         int
	UserId         *int
	Role           models.UserRole
	IdempotencyKey *string
	Metadata       map[string]any
}

// ScanResult tells the station operator what the scan did and which
// downstream queue the card was routed to.
type ScanResult struct {
	Card     *models.KanbanCard
	LoopType models.LoopType
	PartId   int
	Message  string
	Replayed bool
}

// TriggerCardByScan handles a QR scan against a card. A scan is only
// ever the created to triggered edge; a card in any other stage yields
// SCAN_CONFLICT naming the actual stage, including when the scan
// carries a previously used idempotency key for a card that has since
// moved on.
func (o *Orchestrator) TriggerCardByScan(ctx context.Context, input *ScanInput) (*ScanResult, error) {
	card, loop, err := o.store.GetCard(ctx, input.CardId)
	if err != nil || card == nil {
		return nil, NewLifecycleError(CodeCardNotFound, "card %d not found", input.CardId)
	}
	if card.BusinessId != input.BusinessId {
		return nil, NewLifecycleError(CodeTenantMismatch, "card %d does not belong to this business", input.CardId)
	}
	if !utils.DereferencePtr(card.IsActive) {
		return nil, NewLifecycleError(CodeCardDeactivated, "card %d is deactivated", input.CardId)
	}
	if card.CurrentStage != models.CardStageCreated {
		return nil, NewLifecycleError(CodeScanConflict, "card %d is already in stage %q", input.CardId, card.CurrentStage)
	}

	result, err := o.TransitionCard(ctx, &TransitionInput{
		BusinessId:     input.BusinessId,
		CardId:         input.CardId,
		TargetStage:    models.CardStageTriggered,
		UserId:         input.UserId,
		Role:           input.Role,
		Method:         models.TransitionMethodQrScan,
		Metadata:       input.Metadata,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return &ScanResult{
		Card:     result.Card,
		LoopType: loop.LoopType,
		PartId:   loop.PartId,
		Message:  queueMessageFor(loop.LoopType),
		Replayed: result.Replayed,
	}, nil
}

func queueMessageFor(loopType models.LoopType) string {
	switch loopType {
	case models.LoopTypeProduction:
		return "Card added to the Production Queue"
	case models.LoopTypeTransfer:
		return "Card added to the Transfer Queue"
	default:
		return "Card added to the Order Queue"
	}
}

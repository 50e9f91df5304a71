package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardaops/kanban_backend/config"
	"github.com/ardaops/kanban_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoopQuantityState is the derived quantity view of a loop. Inferred
// quantity counts every active card that has left the created stage as
// one order quantity in flight; it is read by event consumers and the
// dashboard, never written back.
type LoopQuantityState struct {
	LoopId           int               `json:"loop_id"`
	InFlightCards    int               `json:"in_flight_cards"`
	InferredQuantity decimal.Decimal   `json:"inferred_quantity"`
	StageCounts      map[CardStage]int `json:"stage_counts"`
}

// InferredLoopQuantity computes the in-flight quantity from an in-memory
// card set: Σ order quantity over active cards whose stage is not created.
func InferredLoopQuantity(loop *KanbanLoop, cards []*KanbanCard) decimal.Decimal {
	total := decimal.Zero
	for _, card := range cards {
		if card == nil {
			continue
		}
		if !utils.DereferencePtr(card.IsActive) {
			continue
		}
		if card.CurrentStage == CardStageCreated {
			continue
		}
		total = total.Add(loop.OrderQuantity)
	}
	return total
}

func loopQuantityCacheKey(businessId string, loopId int) string {
	return fmt.Sprintf("LoopQuantity:%s:%d", businessId, loopId)
}

// InvalidateLoopQuantityCache drops the cached quantity state. Called
// after every committed transition; the cache is best-effort and MySQL
// stays the authority.
func InvalidateLoopQuantityCache(businessId string, loopId int) {
	_ = config.RemoveRedisKey(loopQuantityCacheKey(businessId, loopId))
}

func GetLoopQuantityState(ctx context.Context, loopId int) (*LoopQuantityState, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if !config.QueueCacheDisabled() {
		var cached LoopQuantityState
		if hit, err := config.GetRedisObject(loopQuantityCacheKey(businessId, loopId), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	loop, err := utils.FetchModel[KanbanLoop](ctx, businessId, loopId)
	if err != nil {
		return nil, err
	}
	cards, err := ListCardsByLoop(ctx, loopId)
	if err != nil {
		return nil, err
	}

	state := LoopQuantityState{
		LoopId:           loopId,
		InferredQuantity: InferredLoopQuantity(loop, cards),
		StageCounts:      make(map[CardStage]int, 6),
	}
	for _, stage := range AllCardStages() {
		state.StageCounts[stage] = 0
	}
	for _, card := range cards {
		if !utils.DereferencePtr(card.IsActive) {
			continue
		}
		state.StageCounts[card.CurrentStage]++
		if card.CurrentStage != CardStageCreated {
			state.InFlightCards++
		}
	}

	if !config.QueueCacheDisabled() {
		_ = config.SetRedisObject(loopQuantityCacheKey(businessId, loopId), &state, 30*time.Second)
	}
	return &state, nil
}

// CardPolicyPlan describes how a card-count or mode change is applied:
// excess cards (numbered above the new count) are deactivated, never
// deleted, and missing numbers are created fresh in the created stage.
type CardPolicyPlan struct {
	DeactivateCardIds []int
	CreateNumbers     []int
}

// PlanCardPolicyChange derives the plan from the current card set. Pure;
// callers apply it transactionally. Deactivated card numbers are not
// reused: new cards continue above the highest number ever issued.
func PlanCardPolicyChange(cards []*KanbanCard, newMode CardMode, newCount int) (CardPolicyPlan, error) {
	if !newMode.IsValid() {
		return CardPolicyPlan{}, errors.New("invalid card mode")
	}
	if newMode == CardModeSingle && newCount != 1 {
		return CardPolicyPlan{}, errors.New("single card mode requires exactly one card")
	}
	if newCount < 1 {
		return CardPolicyPlan{}, errors.New("number of cards must be at least one")
	}

	plan := CardPolicyPlan{}
	highest := 0
	activeCount := 0
	for _, card := range cards {
		if card.CardNumber > highest {
			highest = card.CardNumber
		}
		if utils.DereferencePtr(card.IsActive) {
			activeCount++
			if card.CardNumber > newCount {
				plan.DeactivateCardIds = append(plan.DeactivateCardIds, card.ID)
			}
		}
	}
	remaining := activeCount - len(plan.DeactivateCardIds)
	for n := highest + 1; remaining+len(plan.CreateNumbers) < newCount; n++ {
		plan.CreateNumbers = append(plan.CreateNumbers, n)
	}
	return plan, nil
}

type CardPolicyChangeInput struct {
	CardMode      CardMode `json:"card_mode" binding:"required"`
	NumberOfCards int      `json:"number_of_cards" binding:"required,min=1"`
	Reason        string   `json:"reason" binding:"required"`
}

// UpdateLoopCardPolicy applies a mode/count switch. It only reads and
// writes Card/Loop state; it never calls the transition orchestrator, so
// a parameter change can never produce lifecycle side effects.
func UpdateLoopCardPolicy(ctx context.Context, loopId int, input *CardPolicyChangeInput) (*KanbanLoop, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, errors.New("a reason is required for card mode or count changes")
	}

	loop, err := utils.FetchModel[KanbanLoop](ctx, businessId, loopId)
	if err != nil {
		return nil, err
	}
	cards, err := ListCardsByLoop(ctx, loopId)
	if err != nil {
		return nil, err
	}

	plan, err := PlanCardPolicyChange(cards, input.CardMode, input.NumberOfCards)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&KanbanLoop{}).
			Where("business_id = ? AND id = ?", businessId, loopId).
			Updates(map[string]interface{}{
				"card_mode":       input.CardMode,
				"number_of_cards": input.NumberOfCards,
			}).Error; err != nil {
			return err
		}
		if len(plan.DeactivateCardIds) > 0 {
			if err := tx.Model(&KanbanCard{}).
				Where("business_id = ? AND id IN ?", businessId, plan.DeactivateCardIds).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		for _, n := range plan.CreateNumbers {
			card := KanbanCard{
				BusinessId:            businessId,
				LoopId:                loopId,
				CardNumber:            n,
				CurrentStage:          CardStageCreated,
				CurrentStageEnteredAt: now,
				IsActive:              utils.NewTrue(),
			}
			if err := tx.Create(&card).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	loop.CardMode = input.CardMode
	loop.NumberOfCards = input.NumberOfCards
	return loop, nil
}

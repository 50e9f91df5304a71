package models

import (
	"context"
	"errors"
	"time"

	"github.com/ardaops/kanban_backend/config"
	"github.com/ardaops/kanban_backend/utils"
)

// KanbanCard is a physical or virtual replenishment card. Its stage is a
// denormalized projection of the transition ledger; it is mutated only by
// the lifecycle orchestrator and deactivated rather than deleted so the
// ledger stays referentially intact.
type KanbanCard struct {
	ID                    int              `gorm:"primary_key" json:"id"`
	BusinessId            string           `gorm:"size:64;index;not null" json:"business_id"`
	LoopId                int              `gorm:"index;not null" json:"loop_id"`
	CardNumber            int              `gorm:"not null" json:"card_number"`
	CurrentStage          CardStage        `gorm:"size:20;not null;index" json:"current_stage"`
	CurrentStageEnteredAt time.Time        `gorm:"not null" json:"current_stage_entered_at"`
	CompletedCycles       int              `gorm:"not null;default:0" json:"completed_cycles"`
	LinkedOrderId         *int             `json:"linked_order_id"`
	LinkedOrderType       *LinkedOrderType `gorm:"size:20" json:"linked_order_type"`
	IsActive              *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetKanbanCard(ctx context.Context, id int) (*KanbanCard, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[KanbanCard](ctx, businessId, id)
}

// GetCardWithLoop is the tenant-scoped point lookup the orchestrator
// runs its preconditions against. Returns RecordNotFound when the card
// does not exist under the tenant.
func GetCardWithLoop(ctx context.Context, businessId string, cardId int) (*KanbanCard, *KanbanLoop, error) {
	db := config.GetDB()

	var card KanbanCard
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&card, cardId).Error; err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}

	var loop KanbanLoop
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&loop, card.LoopId).Error; err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}

	return &card, &loop, nil
}

func ListCardsByLoop(ctx context.Context, loopId int) ([]*KanbanCard, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var cards []*KanbanCard
	if err := db.WithContext(ctx).
		Where("business_id = ? AND loop_id = ?", businessId, loopId).
		Order("card_number ASC").
		Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// GetLoopStageSummary counts active cards per stage for one loop.
func GetLoopStageSummary(ctx context.Context, loopId int) (map[CardStage]int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	type stageCount struct {
		CurrentStage CardStage
		Count        int
	}
	db := config.GetDB()
	var rows []stageCount
	if err := db.WithContext(ctx).Model(&KanbanCard{}).
		Select("current_stage, COUNT(*) as count").
		Where("business_id = ? AND loop_id = ? AND is_active = 1", businessId, loopId).
		Group("current_stage").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	summary := make(map[CardStage]int, len(rows))
	for _, stage := range AllCardStages() {
		summary[stage] = 0
	}
	for _, r := range rows {
		summary[r.CurrentStage] = r.Count
	}
	return summary, nil
}

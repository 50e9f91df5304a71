package models

import (
	"context"
	"errors"
	"time"

	"github.com/ardaops/kanban_backend/config"
	"github.com/ardaops/kanban_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// KanbanLoop is the replenishment policy a set of cards belongs to.
// Cards are owned 1:N by their loop and are created when the loop is
// provisioned or when NumberOfCards increases.
type KanbanLoop struct {
	ID               int              `gorm:"primary_key" json:"id"`
	BusinessId       string           `gorm:"size:64;index;not null" json:"business_id"`
	PartId           int              `gorm:"index;not null" json:"part_id"`
	PartName         string           `gorm:"size:255" json:"part_name"`
	LoopType         LoopType         `gorm:"size:20;not null" json:"loop_type"`
	CardMode         CardMode         `gorm:"size:10;not null" json:"card_mode"`
	OrderQuantity    decimal.Decimal  `gorm:"type:decimal(20,6);not null" json:"order_quantity"`
	NumberOfCards    int              `gorm:"not null" json:"number_of_cards"`
	FacilityId       int              `gorm:"index;not null" json:"facility_id"`
	SourceFacilityId *int             `json:"source_facility_id"`
	SupplierId       *int             `json:"supplier_id"`
	IsActive         *bool            `gorm:"not null;default:true" json:"is_active"`
	Cards            []KanbanCard     `gorm:"foreignKey:LoopId" json:"cards,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewKanbanLoop struct {
	PartId           int             `json:"part_id" binding:"required"`
	PartName         string          `json:"part_name"`
	LoopType         LoopType        `json:"loop_type" binding:"required"`
	CardMode         CardMode        `json:"card_mode" binding:"required"`
	OrderQuantity    decimal.Decimal `json:"order_quantity" binding:"required"`
	NumberOfCards    int             `json:"number_of_cards" binding:"required,min=1"`
	FacilityId       int             `json:"facility_id" binding:"required"`
	SourceFacilityId *int            `json:"source_facility_id"`
	SupplierId       *int            `json:"supplier_id"`
}

func (input *NewKanbanLoop) validate() error {
	if !input.LoopType.IsValid() {
		return errors.New("invalid loop type")
	}
	if !input.CardMode.IsValid() {
		return errors.New("invalid card mode")
	}
	if input.CardMode == CardModeSingle && input.NumberOfCards != 1 {
		return errors.New("single card mode requires exactly one card")
	}
	if !input.OrderQuantity.IsPositive() {
		return errors.New("order quantity must be positive")
	}
	if input.LoopType == LoopTypeTransfer && input.SourceFacilityId == nil {
		return errors.New("transfer loops require a source facility")
	}
	return nil
}

// CreateKanbanLoop provisions the loop and its full card set (numbered
// 1..NumberOfCards, all in the created stage) in one transaction.
func CreateKanbanLoop(ctx context.Context, input *NewKanbanLoop) (*KanbanLoop, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	// One active loop per (part, facility, loop type); deactivate the old
	// loop before reprovisioning.
	count, err := utils.ResourceCountWhere[KanbanLoop](ctx, businessId,
		"part_id = ? AND facility_id = ? AND loop_type = ? AND is_active = 1",
		input.PartId, input.FacilityId, input.LoopType)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("an active loop for this part, facility, and loop type already exists")
	}

	db := config.GetDB()
	loop := KanbanLoop{
		BusinessId:       businessId,
		PartId:           input.PartId,
		PartName:         input.PartName,
		LoopType:         input.LoopType,
		CardMode:         input.CardMode,
		OrderQuantity:    input.OrderQuantity,
		NumberOfCards:    input.NumberOfCards,
		FacilityId:       input.FacilityId,
		SourceFacilityId: input.SourceFacilityId,
		SupplierId:       input.SupplierId,
		IsActive:         utils.NewTrue(),
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&loop).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for n := 1; n <= loop.NumberOfCards; n++ {
			card := KanbanCard{
				BusinessId:            businessId,
				LoopId:                loop.ID,
				CardNumber:            n,
				CurrentStage:          CardStageCreated,
				CurrentStageEnteredAt: now,
				IsActive:              utils.NewTrue(),
			}
			if err := tx.Create(&card).Error; err != nil {
				return err
			}
			loop.Cards = append(loop.Cards, card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loop, nil
}

type UpdateKanbanLoopInput struct {
	PartName      *string          `json:"part_name"`
	OrderQuantity *decimal.Decimal `json:"order_quantity"`
	SupplierId    *int             `json:"supplier_id"`
}

// UpdateKanbanLoop changes non-structural loop attributes. Card count and
// mode changes go through UpdateLoopCardPolicy, which has its own audit
// requirements.
func UpdateKanbanLoop(ctx context.Context, id int, input *UpdateKanbanLoopInput) (*KanbanLoop, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	loop, err := utils.FetchModel[KanbanLoop](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.PartName != nil {
		updates["part_name"] = *input.PartName
	}
	if input.OrderQuantity != nil {
		if !input.OrderQuantity.IsPositive() {
			return nil, errors.New("order quantity must be positive")
		}
		updates["order_quantity"] = *input.OrderQuantity
	}
	if input.SupplierId != nil {
		updates["supplier_id"] = *input.SupplierId
	}
	if len(updates) == 0 {
		return loop, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(loop).Updates(updates).Error; err != nil {
		return nil, err
	}
	return loop, nil
}

func ToggleActiveKanbanLoop(ctx context.Context, id int, isActive bool) (*KanbanLoop, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	loop, err := utils.FetchModel[KanbanLoop](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(loop).Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	return loop, nil
}

func GetKanbanLoop(ctx context.Context, id int) (*KanbanLoop, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[KanbanLoop](ctx, businessId, id)
}

func ListKanbanLoops(ctx context.Context) ([]*KanbanLoop, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[KanbanLoop](ctx, businessId)
}

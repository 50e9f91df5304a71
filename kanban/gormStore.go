package kanban

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the MySQL-backed persistence gateway.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func (s *GormStore) GetCard(ctx context.Context, cardId int) (*models.KanbanCard, *models.KanbanLoop, error) {
	// Unscoped: the scan handler tells tenant mismatch apart from a
	// genuinely unknown card.
	scanCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	var card models.KanbanCard
	if err := s.DB.WithContext(scanCtx).First(&card, cardId).Error; err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	var loop models.KanbanLoop
	if err := s.DB.WithContext(scanCtx).First(&loop, card.LoopId).Error; err != nil {
		return nil, nil, utils.ErrorRecordNotFound
	}
	return &card, &loop, nil
}

func (s *GormStore) GetCardWithLoop(ctx context.Context, businessId string, cardId int) (*models.KanbanCard, *models.KanbanLoop, error) {
	return models.GetCardWithLoop(ctx, businessId, cardId)
}

func (s *GormStore) FindTransitionByKey(ctx context.Context, businessId string, cardId int, key string) (*models.CardTransition, error) {
	return models.FindTransitionByIdempotencyKey(ctx, businessId, cardId, key)
}

func (s *GormStore) CommitTransition(ctx context.Context, write *TransitionWrite) (*models.KanbanCard, *models.CardTransition, bool, error) {
	var (
		card       models.KanbanCard
		transition models.CardTransition
	)

	var metadataJSON *string
	if len(write.Metadata) > 0 {
		raw, err := json.Marshal(write.Metadata)
		if err != nil {
			return nil, nil, false, err
		}
		str := string(raw)
		metadataJSON = &str
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the card row so two racing transitions serialize here and
		// the loser sees the winner's stage.
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ?", write.BusinessId).
			First(&card, write.CardId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if card.CurrentStage != write.FromStage {
			return &StaleStageError{Actual: card.CurrentStage}
		}

		transition = models.CardTransition{
			BusinessId:      write.BusinessId,
			CardId:          write.CardId,
			LoopId:          write.LoopId,
			CycleNumber:     write.CycleNumber,
			FromStage:       write.FromStage,
			ToStage:         write.ToStage,
			TransitionedAt:  write.TransitionedAt,
			UserId:          write.UserId,
			Method:          write.Method,
			Notes:           write.Notes,
			Metadata:        metadataJSON,
			IdempotencyKey:  write.IdempotencyKey,
			CorrelationId:   write.CorrelationId,
			LinkedOrderId:   write.LinkedOrderId,
			LinkedOrderType: write.LinkedOrderType,
		}
		if err := tx.Create(&transition).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"current_stage":            write.ToStage,
			"current_stage_entered_at": write.TransitionedAt,
		}
		if write.IncrementCompletedCycles {
			updates["completed_cycles"] = gorm.Expr("completed_cycles + 1")
		}
		if write.LinkedOrderId != nil {
			updates["linked_order_id"] = write.LinkedOrderId
			updates["linked_order_type"] = write.LinkedOrderType
		}
		if err := tx.Model(&models.KanbanCard{}).
			Where("business_id = ? AND id = ?", write.BusinessId, write.CardId).
			Updates(updates).Error; err != nil {
			return err
		}

		for _, event := range write.Events {
			if err := models.EnqueueLifecycleEvent(tx, write.BusinessId, event.Type, write.CardId, write.LoopId, write.TransitionedAt, event.Payload, write.CorrelationId); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		models.InvalidateLoopQuantityCache(write.BusinessId, write.LoopId)
		// Re-read the committed projection instead of patching in memory.
		refreshed, _, rerr := s.GetCard(ctx, write.CardId)
		if rerr == nil {
			card = *refreshed
		} else {
			card.CurrentStage = write.ToStage
			card.CurrentStageEnteredAt = write.TransitionedAt
		}
		return &card, &transition, false, nil
	}

	// A concurrent duplicate with the same idempotency key beat us to the
	// unique index. Return the winner's rows as the idempotent result.
	if isDuplicateKeyErr(err) && write.IdempotencyKey != nil {
		existing, lerr := s.FindTransitionByKey(ctx, write.BusinessId, write.CardId, *write.IdempotencyKey)
		if lerr == nil && existing != nil {
			current, _, cerr := s.GetCard(ctx, write.CardId)
			if cerr == nil {
				return current, existing, true, nil
			}
		}
	}
	return nil, nil, false, err
}

package kanban_test

import (
	"context"
	"fmt"

	"github.com/ardaops/kanban_backend/kanban"
	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
)

const testBusinessId = "biz-1"

// fakeStore is an in-memory Store so orchestration tests run without a
// database. Commits apply the write against the held card exactly the
// way GormStore does.
type fakeStore struct {
	cards map[int]*models.KanbanCard
	loops map[int]*models.KanbanLoop
	byKey map[string]*models.CardTransition

	commits     int
	cardFetches int
	lastWrite   *kanban.TransitionWrite
	commitErr   error

	nextTransitionId int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:            map[int]*models.KanbanCard{},
		loops:            map[int]*models.KanbanLoop{},
		byKey:            map[string]*models.CardTransition{},
		nextTransitionId: 1,
	}
}

func (s *fakeStore) addLoop(id int, loopType models.LoopType) *models.KanbanLoop {
	loop := &models.KanbanLoop{
		ID:            id,
		BusinessId:    testBusinessId,
		PartId:        1001,
		LoopType:      loopType,
		CardMode:      models.CardModeMulti,
		NumberOfCards: 3,
		FacilityId:    1,
		IsActive:      utils.NewTrue(),
	}
	s.loops[id] = loop
	return loop
}

func (s *fakeStore) addCard(id int, loopId int, stage models.CardStage) *models.KanbanCard {
	card := &models.KanbanCard{
		ID:           id,
		BusinessId:   testBusinessId,
		LoopId:       loopId,
		CardNumber:   1,
		CurrentStage: stage,
		IsActive:     utils.NewTrue(),
	}
	s.cards[id] = card
	return card
}

func (s *fakeStore) GetCard(ctx context.Context, cardId int) (*models.KanbanCard, *models.KanbanLoop, error) {
	s.cardFetches++
	card, ok := s.cards[cardId]
	if !ok {
		return nil, nil, utils.ErrorRecordNotFound
	}
	loop, ok := s.loops[card.LoopId]
	if !ok {
		return nil, nil, utils.ErrorRecordNotFound
	}
	return card, loop, nil
}

func (s *fakeStore) GetCardWithLoop(ctx context.Context, businessId string, cardId int) (*models.KanbanCard, *models.KanbanLoop, error) {
	card, ok := s.cards[cardId]
	if !ok || card.BusinessId != businessId {
		return nil, nil, utils.ErrorRecordNotFound
	}
	loop, ok := s.loops[card.LoopId]
	if !ok {
		return nil, nil, utils.ErrorRecordNotFound
	}
	return card, loop, nil
}

func idemKey(businessId string, cardId int, key string) string {
	return fmt.Sprintf("%s/%d/%s", businessId, cardId, key)
}

func (s *fakeStore) FindTransitionByKey(ctx context.Context, businessId string, cardId int, key string) (*models.CardTransition, error) {
	if transition, ok := s.byKey[idemKey(businessId, cardId, key)]; ok {
		return transition, nil
	}
	return nil, nil
}

func (s *fakeStore) CommitTransition(ctx context.Context, write *kanban.TransitionWrite) (*models.KanbanCard, *models.CardTransition, bool, error) {
	if s.commitErr != nil {
		return nil, nil, false, s.commitErr
	}
	card, ok := s.cards[write.CardId]
	if !ok {
		return nil, nil, false, utils.ErrorRecordNotFound
	}
	if card.CurrentStage != write.FromStage {
		return nil, nil, false, &kanban.StaleStageError{Actual: card.CurrentStage}
	}

	s.commits++
	s.lastWrite = write

	card.CurrentStage = write.ToStage
	card.CurrentStageEnteredAt = write.TransitionedAt
	if write.IncrementCompletedCycles {
		card.CompletedCycles++
	}
	if write.LinkedOrderId != nil {
		card.LinkedOrderId = write.LinkedOrderId
		card.LinkedOrderType = write.LinkedOrderType
	}

	transition := &models.CardTransition{
		ID:              s.nextTransitionId,
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
		IdempotencyKey:  write.IdempotencyKey,
		CorrelationId:   write.CorrelationId,
		LinkedOrderId:   write.LinkedOrderId,
		LinkedOrderType: write.LinkedOrderType,
	}
	s.nextTransitionId++

	if write.IdempotencyKey != nil && *write.IdempotencyKey != "" {
		s.byKey[idemKey(write.BusinessId, write.CardId, *write.IdempotencyKey)] = transition
	}
	return card, transition, false, nil
}

package kanban

import (
	"context"
	"time"

	"github.com/ardaops/kanban_backend/models"
	"github.com/sirupsen/logrus"
)

// ScanReplayItem is one scan a station captured while offline. The
// idempotency key was minted on the device at capture time, so the
// same item can be uploaded more than once without double-triggering.
type ScanReplayItem struct {
	CardId         int        `json:"cardId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	CapturedAt     *time.Time `json:"capturedAt,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
}

// ScanReplayResult is the per-item outcome of an offline batch. One
// failed item never aborts the batch; every input item gets a result
// at the same position.
type ScanReplayResult struct {
	CardId    int                `json:"cardId"`
	Success   bool               `json:"success"`
	WasReplay bool               `json:"wasReplay"`
	ErrorCode ErrorCode          `json:"errorCode,omitempty"`
	Error     string             `json:"error,omitempty"`
	Card      *models.KanbanCard `json:"card,omitempty"`
}

// ReplayScans processes an offline scan batch strictly in order.
// Items are applied sequentially because a batch can legitimately
// contain multiple scans of cards in the same loop and the device
// recorded them in capture order. The method itself never fails;
// failures are reported per item.
func (o *Orchestrator) ReplayScans(ctx context.Context, businessId string, userId *int, role models.UserRole, items []ScanReplayItem) []ScanReplayResult {
	results := make([]ScanReplayResult, 0, len(items))
	for _, item := range items {
		result := ScanReplayResult{CardId: item.CardId, WasReplay: true}

		key := item.IdempotencyKey
		scan, err := o.TriggerCardByScan(ctx, &ScanInput{
			BusinessId:     businessId,
			CardId:         item.CardId,
			UserId:         userId,
			Role:           role,
			IdempotencyKey: &key,
			Metadata:       replayMetadata(item),
		})
		if err != nil {
			result.ErrorCode = replayErrorCode(err)
			result.Error = err.Error()
			if o.logger != nil {
				o.logger.WithFields(logrus.Fields{
					"module":      "replay",
					"business_id": businessId,
					"card_id":     item.CardId,
					"error_code":  result.ErrorCode,
				}).Warn("offline scan rejected")
			}
		} else {
			result.Success = true
			result.Card = scan.Card
		}
		results = append(results, result)
	}
	return results
}

func replayMetadata(item ScanReplayItem) map[string]any {
	metadata := map[string]any{"source": "offline_replay"}
	if item.CapturedAt != nil {
		metadata["capturedAt"] = item.CapturedAt.UTC().Format(time.RFC3339)
	}
	if item.Latitude != nil && item.Longitude != nil {
		metadata["latitude"] = *item.Latitude
		metadata["longitude"] = *item.Longitude
	}
	return metadata
}

// replayErrorCode maps a live-scan failure onto the replay vocabulary.
// A card that moved on since capture is a duplicate from the batch's
// point of view, not a conflict the operator can act on.
func replayErrorCode(err error) ErrorCode {
	if IsCode(err, CodeScanConflict) {
		return CodeScanDuplicate
	}
	return CodeOf(err)
}

package timeline

import (
	"context"
	"time"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

// Recorder appends narrated events to the per-order timeline consumed
// by customer tracking. Events are append-only; there is no update or
// delete path.
type Recorder struct {
	repo   interfaces.TimelineRepository
	logger logger.Logger
}

func NewRecorder(repo interfaces.TimelineRepository, logger logger.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

func (r *Recorder) Record(ctx context.Context, orderID int64, kind domain.EventKind, title, description string) error {
	ev := domain.NewTimelineEvent(orderID, kind, title, description, time.Now())
	if err := r.repo.Append(ctx, ev); err != nil {
		r.logger.Error("timeline_append_failed", "Failed to append timeline event", "", map[string]interface{}{
			"order_id": orderID,
			"kind":     string(kind),
		}, err)
		return err
	}

	r.logger.Debug("timeline_event", "Timeline event recorded", "", map[string]interface{}{
		"order_id": orderID,
		"kind":     string(kind),
	})
	return nil
}

// Timeline returns the order's events, newest first.
func (r *Recorder) Timeline(ctx context.Context, orderID int64) ([]*domain.TimelineEvent, error) {
	return r.repo.ByOrder(ctx, orderID)
}

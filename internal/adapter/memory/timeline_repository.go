package memory

import (
	"context"
	"sync"

	"github.com/dastanm/restops/internal/domain"
)

type TimelineRepository struct {
	mu     sync.Mutex
	events map[int64][]*domain.TimelineEvent
	nextID int64
}

func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{events: make(map[int64][]*domain.TimelineEvent)}
}

func (r *TimelineRepository) Append(ctx context.Context, ev *domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ev.ID = r.nextID
	c := *ev
	r.events[ev.OrderID] = append(r.events[ev.OrderID], &c)
	return nil
}

// ByOrder returns events newest first.
func (r *TimelineRepository) ByOrder(ctx context.Context, orderID int64) ([]*domain.TimelineEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evs := r.events[orderID]
	out := make([]*domain.TimelineEvent, len(evs))
	for i, ev := range evs {
		c := *ev
		out[len(evs)-1-i] = &c
	}
	return out, nil
}

package file

import (
	"context"
	"sort"
	"time"

	"github.com/embarkhq/embark/pkg/models"
)

const eventsKind = "events"

// EventRepository stores tracked events as JSON documents.
type EventRepository struct {
	p *Persistence
}

func (r *EventRepository) Save(_ context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	return r.p.write(eventsKind, event.ID, event)
}

func (r *EventRepository) ByUser(_ context.Context, userID string, names []string) ([]*models.Event, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var events []*models.Event

	err := r.p.readEach(eventsKind,
		func() any { return &models.Event{} },
		func(item any) {
			event := item.(*models.Event)
			if event.UserID != userID {
				return
			}

			if len(wanted) > 0 && !wanted[event.Name] {
				return
			}

			events = append(events, event)
		})
	if err != nil {
		return nil, err
	}

	sort.Slice(events, func(i, k int) bool {
		return events[i].CreatedAt.Before(events[k].CreatedAt)
	})

	return events, nil
}

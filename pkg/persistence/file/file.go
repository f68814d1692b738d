// Package file provides a file-backed persistence implementation used for
// development and tests. Each entity is one JSON document under a per-kind
// directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/embarkhq/embark/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
	mu   sync.RWMutex

	users       *UserRepository
	events      *EventRepository
	lists       *ListRepository
	journeys    *JourneyRepository
	userSteps   *UserStepRepository
	deliveries  *DeliveryRepository
	ruleResults *RuleResultRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.users = &UserRepository{p: p}
	p.events = &EventRepository{p: p}
	p.lists = &ListRepository{p: p}
	p.journeys = &JourneyRepository{p: p}
	p.userSteps = &UserStepRepository{p: p}
	p.deliveries = &DeliveryRepository{p: p}
	p.ruleResults = &RuleResultRepository{p: p}

	return p
}

func (p *Persistence) Users() persistence.UserRepository               { return p.users }
func (p *Persistence) Events() persistence.EventRepository             { return p.events }
func (p *Persistence) Lists() persistence.ListRepository               { return p.lists }
func (p *Persistence) Journeys() persistence.JourneyRepository         { return p.journeys }
func (p *Persistence) UserSteps() persistence.UserStepRepository       { return p.userSteps }
func (p *Persistence) Deliveries() persistence.DeliveryRepository      { return p.deliveries }
func (p *Persistence) RuleResults() persistence.RuleResultRepository   { return p.ruleResults }

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) dir(kind string) string {
	return filepath.Join(p.root, kind)
}

// write stores one entity document, creating the kind directory on demand.
func (p *Persistence) write(kind, id string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := p.dir(kind)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// read loads one entity document into out; notFound is returned when the
// document does not exist.
func (p *Persistence) read(kind, id string, out any, notFound error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(p.dir(kind), id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// readEach iterates every document of a kind, decoding each into a fresh
// value produced by newItem and passing it to visit.
func (p *Persistence) readEach(kind string, newItem func() any, visit func(any)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(p.dir(kind))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to list %s directory: %w", kind, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.dir(kind), entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		item := newItem()
		if err := json.Unmarshal(data, item); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", entry.Name(), err)
		}

		visit(item)
	}

	return nil
}

// remove deletes one entity document; deleting a missing document is not an
// error.
func (p *Persistence) remove(kind, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(filepath.Join(p.dir(kind), id+".json"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}

	return nil
}

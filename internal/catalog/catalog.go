package catalog

import (
	"sync"

	"podrepo-agent/internal/eventbus"
	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
)

// EventType describes what changed in the catalog
type EventType string

const (
	EventReplaced EventType = "replaced"
	EventAdded    EventType = "added"
	EventChanged  EventType = "changed"
	EventStatus   EventType = "status"
)

// Event is delivered to subscribers after a mutation.
// Repo is set for added, changed and status events; Repos holds the new
// snapshot for replaced events.
type Event struct {
	Type  EventType           `json:"type"`
	Repo  models.SourceRepo   `json:"repo"`
	Repos []models.SourceRepo `json:"repos,omitempty"`
}

// Subscription identifies a catalog observer
type Subscription = eventbus.Subscription

// Catalog is the canonical set of known source repositories, keyed by address.
// All mutations are serialised; reads return copies.
type Catalog struct {
	logger *logrus.Logger

	mu    sync.RWMutex
	order []string
	repos map[string]models.SourceRepo

	bus *eventbus.Bus[Event]
}

// New creates an empty catalog
func New(logger *logrus.Logger) *Catalog {
	c := &Catalog{
		logger: logger,
		repos:  make(map[string]models.SourceRepo),
	}
	c.bus = eventbus.New[Event](eventbus.WithPanicHandler(func(v any) {
		logger.WithField("panic", v).Error("Catalog subscriber panicked")
	}))
	return c
}

// GetAll returns a snapshot of the catalog in insertion order
func (c *Catalog) GetAll() []models.SourceRepo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Get returns the repo for an address
func (c *Catalog) Get(address string) (models.SourceRepo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	repo, ok := c.repos[address]
	return repo, ok
}

// Find looks a repo up by address, falling back to its directory name
func (c *Catalog) Find(key string) (models.SourceRepo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if repo, ok := c.repos[key]; ok {
		return repo, true
	}
	for _, address := range c.order {
		if repo := c.repos[address]; repo.Name == key {
			return repo, true
		}
	}
	return models.SourceRepo{}, false
}

// Len returns the number of repos in the catalog
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Merge adds discovered repos that are not yet known and refreshes the
// descriptive fields of those that are. It never removes entries and never
// touches IsUpdating of an existing entry.
func (c *Catalog) Merge(discovered []models.SourceRepo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	added, changed := 0, 0
	for _, repo := range discovered {
		if repo.Address == "" {
			continue
		}
		existing, ok := c.repos[repo.Address]
		if !ok {
			repo.IsUpdating = false
			c.repos[repo.Address] = repo
			c.order = append(c.order, repo.Address)
			c.bus.Publish(Event{Type: EventAdded, Repo: repo})
			added++
			continue
		}

		repo.IsUpdating = existing.IsUpdating
		if repo != existing {
			c.repos[repo.Address] = repo
			c.bus.Publish(Event{Type: EventChanged, Repo: repo})
			changed++
		}
	}

	c.logger.WithFields(logrus.Fields{
		"discovered": len(discovered),
		"added":      added,
		"changed":    changed,
		"total":      len(c.order),
	}).Debug("Merged discovered repositories")
}

// Replace swaps the catalog contents for a fresh discovery result.
// Repos that survive the swap keep their IsUpdating status.
func (c *Catalog) Replace(discovered []models.SourceRepo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	repos := make(map[string]models.SourceRepo, len(discovered))
	order := make([]string, 0, len(discovered))
	for _, repo := range discovered {
		if repo.Address == "" {
			continue
		}
		repo.IsUpdating = false
		if existing, ok := c.repos[repo.Address]; ok {
			repo.IsUpdating = existing.IsUpdating
		}
		if _, seen := repos[repo.Address]; !seen {
			order = append(order, repo.Address)
		}
		repos[repo.Address] = repo
	}

	removed := 0
	for address := range c.repos {
		if _, ok := repos[address]; !ok {
			removed++
		}
	}

	c.repos = repos
	c.order = order
	c.bus.Publish(Event{Type: EventReplaced, Repos: c.snapshotLocked()})

	c.logger.WithFields(logrus.Fields{
		"total":   len(order),
		"removed": removed,
	}).Debug("Replaced repository catalog")
}

// SetUpdating sets the live status of a repo and notifies subscribers.
// It reports whether the address is known; unknown addresses and
// unchanged values are no-ops.
func (c *Catalog) SetUpdating(address string, updating bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	repo, ok := c.repos[address]
	if !ok {
		return false
	}
	if repo.IsUpdating != updating {
		c.setUpdatingLocked(repo, updating)
	}
	return true
}

// TrySetUpdating marks an idle repo as updating in one step. found is false
// for unknown addresses and started is false when the repo is already
// updating. The returned repo carries the new status.
func (c *Catalog) TrySetUpdating(address string) (repo models.SourceRepo, found, started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	repo, found = c.repos[address]
	if !found || repo.IsUpdating {
		return repo, found, false
	}
	return c.setUpdatingLocked(repo, true), true, true
}

func (c *Catalog) setUpdatingLocked(repo models.SourceRepo, updating bool) models.SourceRepo {
	repo.IsUpdating = updating
	c.repos[repo.Address] = repo
	c.bus.Publish(Event{Type: EventStatus, Repo: repo})

	c.logger.WithFields(logrus.Fields{
		"address":  repo.Address,
		"updating": updating,
	}).Debug("Repository status changed")
	return repo
}

// Subscribe registers a handler for catalog events. Handlers run on a single
// delivery goroutine, in mutation order, and must not block for long.
func (c *Catalog) Subscribe(handler func(Event)) Subscription {
	return c.bus.Subscribe(handler)
}

// Unsubscribe removes a handler registered with Subscribe
func (c *Catalog) Unsubscribe(sub Subscription) {
	c.bus.Unsubscribe(sub)
}

// Close stops event delivery once queued events have been handed out
func (c *Catalog) Close() {
	c.bus.Close()
}

func (c *Catalog) snapshotLocked() []models.SourceRepo {
	out := make([]models.SourceRepo, 0, len(c.order))
	for _, address := range c.order {
		out = append(out, c.repos[address])
	}
	return out
}

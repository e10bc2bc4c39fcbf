// Package refresh drives repository discovery and per-repository updates
// and reflects their progress in the catalog.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"podrepo-agent/internal/catalog"
	"podrepo-agent/internal/lifecycle"
	"podrepo-agent/internal/metrics"
	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrRepoNotFound      = errors.New("no such repository")
	ErrAlreadyUpdating   = errors.New("repository is already updating")
	ErrDiscoveryFailed   = errors.New("repository discovery failed")
	ErrUpdateFailed      = errors.New("repository update failed")
	errCollaboratorPanic = errors.New("panic")
)

const discoverKey = "discover"

// Enumerator lists the source repositories available in the environment
type Enumerator interface {
	Enumerate(ctx context.Context) ([]models.SourceRepo, error)
}

// Executor brings a single source repository up to date
type Executor interface {
	RunUpdate(ctx context.Context, repo models.SourceRepo) error
}

// DiscoveryResult is the outcome of a discovery. Repos is the catalog
// snapshot taken right after the discovered repos were applied.
type DiscoveryResult struct {
	Repos []models.SourceRepo
	Err   error
}

// Options tunes a Coordinator
type Options struct {
	// Prune replaces the catalog with each discovery instead of merging.
	Prune   bool
	Metrics *metrics.Collector
}

// Coordinator runs discoveries and updates against a catalog
type Coordinator struct {
	logger     *logrus.Logger
	catalog    *catalog.Catalog
	enumerator Enumerator
	executor   Executor
	prune      bool
	metrics    *metrics.Collector

	group       singleflight.Group
	discovering atomic.Bool
}

// New creates a coordinator for cat
func New(logger *logrus.Logger, cat *catalog.Catalog, enumerator Enumerator, executor Executor, opts Options) *Coordinator {
	return &Coordinator{
		logger:     logger,
		catalog:    cat,
		enumerator: enumerator,
		executor:   executor,
		prune:      opts.Prune,
		metrics:    opts.Metrics,
	}
}

// DiscoverAll enumerates repositories and applies them to the catalog.
// While a discovery is running, further calls join it and receive its
// result instead of enumerating again. Once started a discovery runs to
// completion even if ctx is cancelled.
func (c *Coordinator) DiscoverAll(ctx context.Context) <-chan DiscoveryResult {
	if c.discovering.Load() {
		c.metrics.DiscoveryCoalesced()
		c.logger.Debug("Joining in-flight repository discovery")
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(discoverKey, func() (any, error) {
		c.discovering.Store(true)
		defer c.discovering.Store(false)
		return c.discover(detached)
	})

	out := make(chan DiscoveryResult, 1)
	go func() {
		defer close(out)
		r := <-ch
		if r.Err != nil {
			out <- DiscoveryResult{Err: r.Err}
			return
		}
		repos, _ := r.Val.([]models.SourceRepo)
		out <- DiscoveryResult{Repos: slices.Clone(repos)}
	}()
	return out
}

// Discover is DiscoverAll for callers that want to block. Returning early
// because ctx ended does not stop the discovery itself.
func (c *Coordinator) Discover(ctx context.Context) ([]models.SourceRepo, error) {
	select {
	case r := <-c.DiscoverAll(ctx):
		return r.Repos, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) discover(ctx context.Context) (repos []models.SourceRepo, err error) {
	start := time.Now()
	c.logger.Info("Discovering source repositories...")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: enumerator %w: %v", ErrDiscoveryFailed, errCollaboratorPanic, r)
			repos = nil
		}
		elapsed := time.Since(start).Seconds()
		c.metrics.ObserveDiscovery(elapsed, err, c.catalog.Len())
		if err != nil {
			c.logger.WithError(err).Warn("Repository discovery failed")
			return
		}
		c.logger.WithFields(logrus.Fields{
			"count":           len(repos),
			"elapsed_seconds": elapsed,
		}).Info("Repository discovery completed")
	}()

	discovered, err := c.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}

	if c.prune {
		c.catalog.Replace(discovered)
	} else {
		c.catalog.Merge(discovered)
	}
	return c.catalog.GetAll(), nil
}

// Update starts updating the repository with the given address.
//
// Unknown addresses fail with ErrRepoNotFound and a repository that is
// already updating fails with ErrAlreadyUpdating; neither reaches the
// executor. Otherwise the repository is marked updating, the executor runs
// in the background, and the status is cleared before the returned
// Operation completes, whatever the outcome.
func (c *Coordinator) Update(ctx context.Context, address string) (*Operation, error) {
	repo, found, started := c.catalog.TrySetUpdating(address)
	if !found {
		c.metrics.UpdateRejected("not_found")
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, address)
	}
	if !started {
		c.metrics.UpdateRejected("already_updating")
		return nil, fmt.Errorf("%w: %s", ErrAlreadyUpdating, address)
	}

	op := newOperation(address)
	c.metrics.UpdateStarted()
	c.logger.WithFields(logrus.Fields{
		"address": address,
		"name":    repo.Name,
	}).Info("Updating source repository")

	go c.runUpdate(context.WithoutCancel(ctx), repo, op)
	return op, nil
}

// IsUpdating reports whether an update for address is in flight
func (c *Coordinator) IsUpdating(address string) bool {
	repo, ok := c.catalog.Get(address)
	return ok && repo.IsUpdating
}

func (c *Coordinator) runUpdate(ctx context.Context, repo models.SourceRepo, op *Operation) {
	start := time.Now()
	err := c.execute(ctx, repo)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrUpdateFailed, repo.Address, err)
	}

	c.catalog.SetUpdating(repo.Address, false)

	elapsed := time.Since(start).Seconds()
	c.metrics.ObserveUpdate(string(repo.Kind), elapsed, err)
	fields := logrus.Fields{
		"address":         repo.Address,
		"elapsed_seconds": elapsed,
	}
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("Source repository update failed")
	} else {
		c.logger.WithFields(fields).Info("Source repository updated")
	}

	op.finish(err)
}

func (c *Coordinator) execute(ctx context.Context, repo models.SourceRepo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor %w: %v", errCollaboratorPanic, r)
		}
	}()
	return c.executor.RunUpdate(ctx, repo)
}

// Run triggers a discovery for every lifecycle signal until ctx is done or
// signals is closed.
func (c *Coordinator) Run(ctx context.Context, signals <-chan lifecycle.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			c.logger.WithField("signal", sig.String()).Debug("Lifecycle signal received")
			if _, err := c.Discover(ctx); err != nil && ctx.Err() == nil {
				c.logger.WithError(err).Warn("Discovery after lifecycle signal failed")
			}
		}
	}
}

// Operation is a running repository update
type Operation struct {
	Address string

	done chan struct{}
	err  error
}

func newOperation(address string) *Operation {
	return &Operation{
		Address: address,
		done:    make(chan struct{}),
	}
}

// Done is closed when the update has finished
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Err returns the outcome of a finished update; nil while it is running
func (o *Operation) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the update finishes or ctx is done
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Operation) finish(err error) {
	o.err = err
	close(o.done)
}

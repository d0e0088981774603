package pipeline

import (
	"context"
	"fmt"
	"sync"

	"neuracall-backend/pkg/metrics"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"

	"go.uber.org/zap"
)

// Store is the slice of the row store the engine needs. The full
// database.DatabaseInterface satisfies it; tests inject fakes.
type Store interface {
	ListOpportunitiesByTenant(tenantID string) ([]models.Opportunity, error)
	ListAllOpportunities() ([]models.Opportunity, error)
	UpdateOpportunityStage(id string, stage models.Stage) error
}

// Board is a point-in-time snapshot of the kanban state: every stage
// has a bucket (possibly empty) and a value total derived from it.
type Board struct {
	Buckets map[models.Stage][]models.Opportunity `json:"buckets"`
	Totals  map[models.Stage]int64                `json:"totals"`
}

// Engine holds the local board state for one session scope and keeps it
// consistent with the row store through optimistic moves: the local
// mutation is applied synchronously, the remote write confirms it, and
// a failed write triggers a full reload back to store truth.
type Engine struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	buckets map[models.Stage][]models.Opportunity

	// scope captured at Load time, reused by rollback reloads
	tenantID string
	unscoped bool
	loaded   bool

	reloading    bool
	reloadQueued bool
}

// NewEngine creates an empty engine. Call Load before anything else.
func NewEngine(store Store, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Load fetches the opportunities visible to the session and partitions
// them into stage buckets. Cofounders and founders see every tenant's
// items; everyone else is scoped to their own tenant. Bucket order is
// the store's creation order.
func (e *Engine) Load(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return fmt.Errorf("pipeline load requires a session")
	}

	unscoped := sess.Role == models.RoleCofounder || sess.Founder
	var (
		items []models.Opportunity
		err   error
	)
	if unscoped {
		items, err = e.store.ListAllOpportunities()
	} else {
		items, err = e.store.ListOpportunitiesByTenant(sess.TenantID)
	}
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}

	buckets := partition(items, e.logger)

	e.mu.Lock()
	e.buckets = buckets
	e.tenantID = sess.TenantID
	e.unscoped = unscoped
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// partition buckets items by stage. Rows carrying a stage outside the
// enum are dropped with a warning; they never reach a snapshot.
func partition(items []models.Opportunity, logger *zap.Logger) map[models.Stage][]models.Opportunity {
	buckets := make(map[models.Stage][]models.Opportunity, len(models.Stages))
	for _, stage := range models.Stages {
		buckets[stage] = []models.Opportunity{}
	}
	for _, item := range items {
		if !models.ValidStage(item.Stage) {
			logger.Warn("opportunity with unknown stage dropped from board",
				zap.String("id", item.ID), zap.String("stage", string(item.Stage)))
			continue
		}
		buckets[item.Stage] = append(buckets[item.Stage], item)
	}
	return buckets
}

// Move transitions one opportunity between stages. The local board
// mutates before the store write goes out, so callers observe the new
// totals immediately; a failed write is rolled back by reloading the
// whole board from the store.
func (e *Engine) Move(ctx context.Context, id string, from, to models.Stage, index int) error {
	if !models.ValidStage(from) || !models.ValidStage(to) {
		return fmt.Errorf("invalid stage transition %q -> %q", from, to)
	}
	if from == to {
		// no-op guard: no remote call, no local mutation
		if e.metrics != nil {
			e.metrics.PipelineMoves.WithLabelValues("noop").Inc()
		}
		return nil
	}

	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return fmt.Errorf("pipeline not loaded")
	}

	item, actualFrom, ok := e.findLocked(id)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("opportunity %s not on the board", id)
	}
	if actualFrom != from {
		// The caller's view was stale; trust the board.
		e.logger.Warn("move source stage stale, using actual bucket",
			zap.String("id", id), zap.String("claimed", string(from)), zap.String("actual", string(actualFrom)))
		from = actualFrom
		if from == to {
			e.mu.Unlock()
			return nil
		}
	}

	e.removeLocked(id, from)
	dest := e.buckets[to]
	if index < 0 {
		index = 0
	}
	if index > len(dest) {
		index = len(dest)
	}
	item.Stage = to
	dest = append(dest, models.Opportunity{})
	copy(dest[index+1:], dest[index:])
	dest[index] = item
	e.buckets[to] = dest
	e.mu.Unlock()

	// Confirm against the store. This blocks; the optimistic state
	// above is already visible to concurrent readers.
	if err := e.store.UpdateOpportunityStage(id, to); err != nil {
		e.logger.Error("stage move rejected by store, reloading board",
			zap.String("id", id), zap.String("to", string(to)), zap.Error(err))
		if e.metrics != nil {
			e.metrics.PipelineMoves.WithLabelValues("rolled_back").Inc()
		}
		if reloadErr := e.rollbackReload(ctx); reloadErr != nil {
			e.logger.Error("rollback reload failed; board may be stale", zap.Error(reloadErr))
		}
		return fmt.Errorf("stage move failed: %w", err)
	}

	if e.metrics != nil {
		e.metrics.PipelineMoves.WithLabelValues("ok").Inc()
	}
	return nil
}

// StageTotal folds the bucket's values. Always recomputed from the
// current local state, never cached, so it is deterministic for a given
// board.
func (e *Engine) StageTotal(stage models.Stage) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total int64
	for _, item := range e.buckets[stage] {
		total += item.ValueCents
	}
	return total
}

// Bucket returns a copy of one stage's items in board order.
func (e *Engine) Bucket(stage models.Stage) []models.Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Opportunity, len(e.buckets[stage]))
	copy(out, e.buckets[stage])
	return out
}

// Snapshot returns the whole board with per-stage totals.
func (e *Engine) Snapshot() Board {
	e.mu.Lock()
	defer e.mu.Unlock()

	board := Board{
		Buckets: make(map[models.Stage][]models.Opportunity, len(models.Stages)),
		Totals:  make(map[models.Stage]int64, len(models.Stages)),
	}
	for _, stage := range models.Stages {
		bucket := make([]models.Opportunity, len(e.buckets[stage]))
		copy(bucket, e.buckets[stage])
		board.Buckets[stage] = bucket

		var total int64
		for _, item := range bucket {
			total += item.ValueCents
		}
		board.Totals[stage] = total
	}
	return board
}

// rollbackReload re-fetches the board using the scope from the last
// Load. Concurrent failures coalesce: while one reload runs, later
// requests just queue a single follow-up pass.
func (e *Engine) rollbackReload(ctx context.Context) error {
	if e.metrics != nil {
		e.metrics.PipelineRollbackReloads.Inc()
	}

	e.mu.Lock()
	if e.reloading {
		e.reloadQueued = true
		e.mu.Unlock()
		return nil
	}
	e.reloading = true
	tenantID, unscoped := e.tenantID, e.unscoped
	e.mu.Unlock()

	for {
		var (
			items []models.Opportunity
			err   error
		)
		if unscoped {
			items, err = e.store.ListAllOpportunities()
		} else {
			items, err = e.store.ListOpportunitiesByTenant(tenantID)
		}

		e.mu.Lock()
		if err == nil {
			e.buckets = partition(items, e.logger)
		}
		if e.reloadQueued {
			e.reloadQueued = false
			e.mu.Unlock()
			continue
		}
		e.reloading = false
		e.mu.Unlock()
		return err
	}
}

func (e *Engine) findLocked(id string) (models.Opportunity, models.Stage, bool) {
	for _, stage := range models.Stages {
		for _, item := range e.buckets[stage] {
			if item.ID == id {
				return item, stage, true
			}
		}
	}
	return models.Opportunity{}, "", false
}

func (e *Engine) removeLocked(id string, stage models.Stage) {
	bucket := e.buckets[stage]
	for i, item := range bucket {
		if item.ID == id {
			e.buckets[stage] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

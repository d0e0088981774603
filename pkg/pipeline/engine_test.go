package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// controlledStore wraps the in-memory store so tests can block or fail
// the stage-update write and count remote calls.
type controlledStore struct {
	*database.MemoryDatabase
	mu          sync.Mutex
	updateCalls int
	gate        chan error // nil: pass through immediately
}

func newControlledStore() *controlledStore {
	return &controlledStore{MemoryDatabase: database.NewMemoryDatabase()}
}

func (s *controlledStore) UpdateOpportunityStage(id string, stage models.Stage) error {
	s.mu.Lock()
	s.updateCalls++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		if err := <-gate; err != nil {
			return err
		}
	}
	return s.MemoryDatabase.UpdateOpportunityStage(id, stage)
}

func (s *controlledStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCalls
}

func seedOpportunity(t *testing.T, store *controlledStore, tenantID, title string, stage models.Stage, valueCents int64) string {
	t.Helper()
	o := &models.Opportunity{TenantID: tenantID, Title: title, Stage: stage, ValueCents: valueCents}
	require.NoError(t, store.CreateOpportunity(o))
	return o.ID
}

func memberSession(tenantID string) *session.Session {
	return &session.Session{UserID: "u1", TenantID: tenantID, Role: models.RoleMember}
}

func TestLoadPartitionsByStage(t *testing.T) {
	store := newControlledStore()
	seedOpportunity(t, store, "t1", "a", models.StageNew, 100)
	seedOpportunity(t, store, "t1", "b", models.StageProposal, 200)
	seedOpportunity(t, store, "t1", "c", models.StageNew, 300)

	// a row carrying an out-of-enum stage must never reach a snapshot
	require.NoError(t, store.CreateOpportunity(&models.Opportunity{
		TenantID: "t1", Title: "corrupt", Stage: models.Stage("archived"), ValueCents: 999,
	}))

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	board := e.Snapshot()
	total := 0
	for _, stage := range models.Stages {
		for _, item := range board.Buckets[stage] {
			assert.Equal(t, stage, item.Stage, "item %s sits in the wrong bucket", item.Title)
			total++
		}
	}
	assert.Equal(t, 3, total, "each valid item in exactly one bucket")
	assert.Len(t, board.Buckets[models.StageNew], 2)
	assert.Len(t, board.Buckets[models.StageProposal], 1)

	// creation order within the bucket
	assert.Equal(t, "a", board.Buckets[models.StageNew][0].Title)
	assert.Equal(t, "c", board.Buckets[models.StageNew][1].Title)
}

func TestTenantIsolation(t *testing.T) {
	store := newControlledStore()
	seedOpportunity(t, store, "t1", "mine", models.StageNew, 100)
	seedOpportunity(t, store, "t2", "theirs", models.StageNew, 200)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	bucket := e.Bucket(models.StageNew)
	require.Len(t, bucket, 1)
	assert.Equal(t, "mine", bucket[0].Title)
	assert.Equal(t, int64(100), e.StageTotal(models.StageNew))
}

func TestCofounderSeesAllTenants(t *testing.T) {
	store := newControlledStore()
	seedOpportunity(t, store, "t1", "mine", models.StageNew, 100)
	seedOpportunity(t, store, "t2", "theirs", models.StageNew, 200)

	e := NewEngine(store, nil, nil)
	cofounder := &session.Session{UserID: "u9", TenantID: "t1", Role: models.RoleCofounder}
	require.NoError(t, e.Load(context.Background(), cofounder))

	assert.Len(t, e.Bucket(models.StageNew), 2)
	assert.Equal(t, int64(300), e.StageTotal(models.StageNew))
}

func TestMoveExampleScenario(t *testing.T) {
	store := newControlledStore()
	seedOpportunity(t, store, "t1", "a", models.StageNew, 100)
	id := seedOpportunity(t, store, "t1", "b", models.StageNew, 200)
	seedOpportunity(t, store, "t1", "c", models.StageNew, 300)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))
	require.Equal(t, int64(600), e.StageTotal(models.StageNew))

	require.NoError(t, e.Move(context.Background(), id, models.StageNew, models.StageQualification, 0))

	assert.Equal(t, int64(400), e.StageTotal(models.StageNew))
	assert.Equal(t, int64(200), e.StageTotal(models.StageQualification))

	stored, err := store.GetOpportunity(id)
	require.NoError(t, err)
	assert.Equal(t, models.StageQualification, stored.Stage)
}

func TestOptimisticTotalsBeforeConfirmation(t *testing.T) {
	store := newControlledStore()
	id := seedOpportunity(t, store, "t1", "deal", models.StageNew, 500)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	store.gate = make(chan error)

	moveDone := make(chan error, 1)
	go func() {
		moveDone <- e.Move(context.Background(), id, models.StageNew, models.StageProposal, 0)
	}()

	// The remote write is parked on the gate; local state must already
	// reflect the move.
	require.Eventually(t, func() bool { return store.calls() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), e.StageTotal(models.StageNew))
	assert.Equal(t, int64(500), e.StageTotal(models.StageProposal))

	store.gate <- nil
	require.NoError(t, <-moveDone)
	assert.Equal(t, int64(500), e.StageTotal(models.StageProposal))
}

func TestRollbackReloadsStoreTruth(t *testing.T) {
	store := newControlledStore()
	id := seedOpportunity(t, store, "t1", "deal", models.StageNew, 500)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	store.gate = make(chan error, 1)
	store.gate <- fmt.Errorf("store rejected the write")

	err := e.Move(context.Background(), id, models.StageNew, models.StageProposal, 0)
	require.Error(t, err)

	// Board reconciled back to the store: the item never left new.
	assert.Equal(t, int64(500), e.StageTotal(models.StageNew))
	assert.Equal(t, int64(0), e.StageTotal(models.StageProposal))

	stored, getErr := store.GetOpportunity(id)
	require.NoError(t, getErr)
	assert.Equal(t, models.StageNew, stored.Stage)
}

func TestNoOpMoveMakesNoRemoteCall(t *testing.T) {
	store := newControlledStore()
	id := seedOpportunity(t, store, "t1", "deal", models.StageNew, 500)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	require.NoError(t, e.Move(context.Background(), id, models.StageNew, models.StageNew, 3))

	assert.Equal(t, 0, store.calls())
	assert.Equal(t, int64(500), e.StageTotal(models.StageNew))
	assert.Len(t, e.Bucket(models.StageNew), 1)
}

func TestMoveClampsDestinationIndex(t *testing.T) {
	store := newControlledStore()
	seedOpportunity(t, store, "t1", "existing", models.StageProposal, 100)
	overID := seedOpportunity(t, store, "t1", "over", models.StageNew, 200)
	underID := seedOpportunity(t, store, "t1", "under", models.StageNew, 300)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	// index past the end appends
	require.NoError(t, e.Move(context.Background(), overID, models.StageNew, models.StageProposal, 99))
	// negative index prepends
	require.NoError(t, e.Move(context.Background(), underID, models.StageNew, models.StageProposal, -5))

	bucket := e.Bucket(models.StageProposal)
	require.Len(t, bucket, 3)
	assert.Equal(t, "under", bucket[0].Title)
	assert.Equal(t, "existing", bucket[1].Title)
	assert.Equal(t, "over", bucket[2].Title)
}

func TestMoveRejectsUnknownStageAndItem(t *testing.T) {
	store := newControlledStore()
	id := seedOpportunity(t, store, "t1", "deal", models.StageNew, 500)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	assert.Error(t, e.Move(context.Background(), id, models.Stage("bogus"), models.StageProposal, 0))
	assert.Error(t, e.Move(context.Background(), id, models.StageNew, models.Stage("bogus"), 0))
	assert.Error(t, e.Move(context.Background(), "missing-id", models.StageNew, models.StageProposal, 0))
	assert.Equal(t, 0, store.calls())
}

func TestMoveWithStaleSourceUsesActualBucket(t *testing.T) {
	store := newControlledStore()
	id := seedOpportunity(t, store, "t1", "deal", models.StageVisit, 500)

	e := NewEngine(store, nil, nil)
	require.NoError(t, e.Load(context.Background(), memberSession("t1")))

	// caller believes the item is still in new; the board knows better
	require.NoError(t, e.Move(context.Background(), id, models.StageNew, models.StageProposal, 0))

	assert.Equal(t, int64(500), e.StageTotal(models.StageProposal))
	assert.Equal(t, int64(0), e.StageTotal(models.StageVisit))
}

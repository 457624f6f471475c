package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/pathflow/internal/journey"
	"github.com/seuros/pathflow/internal/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(ttl time.Duration) (*Registry, *clock) {
	c := &clock{now: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(ttl)
	r.now = c.Now
	return r, c
}

func newJourney(t *testing.T, saver journey.FunnelSaver) *journey.Session {
	t.Helper()
	s, err := journey.NewSession([]journey.PathRecord{
		journey.MustPathRecord(5, "/", "/pricing"),
		journey.MustPathRecord(3, "/", "/docs"),
	}, 2, saver)
	require.NoError(t, err)
	return s
}

func TestRegistryCreateGetDelete(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)

	e := r.Create(store.PathQuery{Steps: 2}, newJourney(t, nil))
	require.NotEmpty(t, e.ID)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(e.ID)
	require.NoError(t, err)
	assert.Same(t, e, got)

	assert.True(t, r.Delete(e.ID))
	assert.False(t, r.Delete(e.ID))
	_, err = r.Get(e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	r, c := newTestRegistry(time.Minute)

	stale := r.Create(store.PathQuery{}, newJourney(t, nil))
	c.Advance(45 * time.Second)
	fresh := r.Create(store.PathQuery{}, newJourney(t, nil))
	c.Advance(30 * time.Second)

	assert.Equal(t, 1, r.Sweep())
	_, err := r.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestGetKeepsSessionAlive(t *testing.T) {
	r, c := newTestRegistry(time.Minute)
	e := r.Create(store.PathQuery{}, newJourney(t, nil))

	for i := 0; i < 3; i++ {
		c.Advance(40 * time.Second)
		_, err := r.Get(e.ID)
		require.NoError(t, err)
	}
	assert.Zero(t, r.Sweep())
}

func TestJanitorStartStop(t *testing.T) {
	r := NewRegistry(time.Nanosecond)
	r.Create(store.PathQuery{}, newJourney(t, nil))

	r.Start(5 * time.Millisecond)
	defer r.Stop()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	r.Stop()
}

type blockingSaver struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSaver) SaveFunnel(ctx context.Context, _ journey.FunnelDefinition) error {
	close(b.started)
	<-b.release
	return nil
}

func TestEntrySaveRunsOutsideLock(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	saver := &blockingSaver{started: make(chan struct{}), release: make(chan struct{})}
	e := r.Create(store.PathQuery{}, newJourney(t, saver))

	e.Do(func(s *journey.Session) {
		s.EnterFunnel()
		s.Click(journey.NodeRef{Column: 0, Name: "/"})
		s.Click(journey.NodeRef{Column: 1, Name: "/pricing"})
	})

	type result struct {
		def *journey.FunnelDefinition
		err error
	}
	done := make(chan result, 1)
	go func() {
		def, err := e.Save(context.Background())
		done <- result{def, err}
	}()
	<-saver.started

	view := e.View()
	assert.True(t, view.Saving)
	var cancelled bool
	e.Do(func(s *journey.Session) { cancelled = s.CancelFunnel() })
	assert.False(t, cancelled, "cancel is refused while saving")

	close(saver.release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "Journey: / → /pricing", res.def.Name)
	assert.Equal(t, "browse", e.View().Mode)
}

func TestEntrySaveOutsideFunnelMode(t *testing.T) {
	r, _ := newTestRegistry(time.Minute)
	e := r.Create(store.PathQuery{}, newJourney(t, nil))

	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, journey.ErrNotDrafting)
}

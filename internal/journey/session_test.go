package journey

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, saver FunnelSaver) *Session {
	t.Helper()
	s, err := NewSession(pricingRecords(), 3, saver, WithIDGenerator(fixedID))
	require.NoError(t, err)
	return s
}

func TestNewSessionValidatesSteps(t *testing.T) {
	_, err := NewSession(nil, 1, &recordingSaver{})
	assert.ErrorIs(t, err, ErrInvalidSteps)
}

func TestSessionBrowseFlow(t *testing.T) {
	s := newTestSession(t, &recordingSaver{})
	assert.Equal(t, "browse", s.View().Mode)

	s.Click(NodeRef{Column: 1, Name: "/pricing"})
	assert.True(t, s.Hover(NodeRef{Column: 0, Name: "/blog"}))
	assert.False(t, s.Hover(NodeRef{Column: 1, Name: "/docs"}))

	view := s.View()
	assert.Equal(t, "selected_active", view.Flow.State)
	assert.Equal(t, "/blog", view.Flow.Selection.Active.Name, "rejected hover keeps previous active node")

	s.Unhover()
	assert.Equal(t, "selected", s.View().Flow.State)

	s.Escape()
	s.Escape()
	assert.Equal(t, "idle", s.View().Flow.State)
}

func TestSessionFunnelModeSuspendsSelection(t *testing.T) {
	saver := &recordingSaver{}
	s := newTestSession(t, saver)
	s.Click(NodeRef{Column: 1, Name: "/pricing"})

	require.True(t, s.EnterFunnel())
	assert.False(t, s.EnterFunnel())

	view := s.View()
	assert.Equal(t, "funnel", view.Mode)
	assert.Equal(t, "idle", view.Flow.State)
	assert.Equal(t, int64(15), view.Flow.Columns[0].VisitorCount, "unfiltered totals in funnel mode")

	assert.False(t, s.Hover(NodeRef{Column: 0, Name: "/"}))
	assert.False(t, s.Click(NodeRef{Column: 0, Name: "/missing"}))
	assert.True(t, s.Click(NodeRef{Column: 0, Name: "/"}))
	assert.False(t, s.Click(NodeRef{Column: 0, Name: "/blog"}))
	assert.True(t, s.Click(NodeRef{Column: 1, Name: "/pricing"}))
	assert.True(t, s.Click(NodeRef{Column: 2, Name: "signup"}))

	view = s.View()
	assert.True(t, view.CanSave)
	assert.Equal(t, []FunnelStep{
		{Column: 0, Type: StepPath, Value: "/"},
		{Column: 1, Type: StepPath, Value: "/pricing"},
		{Column: 2, Type: StepEvent, Value: "signup"},
	}, view.Draft)

	def, err := s.SaveFunnel(context.Background())
	require.NoError(t, err)
	assert.Len(t, def.Steps, 3)
	assert.Equal(t, "browse", s.View().Mode)
	assert.Equal(t, "idle", s.View().Flow.State, "selection is not restored after funnel mode")
}

func TestSessionFunnelSaveFailureStaysInFunnelMode(t *testing.T) {
	s := newTestSession(t, &recordingSaver{err: errors.New("boom")})
	s.EnterFunnel()
	s.Click(NodeRef{Column: 0, Name: "/"})
	s.Click(NodeRef{Column: 1, Name: "/docs"})

	_, err := s.SaveFunnel(context.Background())
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "funnel", s.View().Mode)
	assert.Len(t, s.View().Draft, 2)
}

func TestSessionEscapeLeavesFunnelMode(t *testing.T) {
	s := newTestSession(t, &recordingSaver{})
	s.EnterFunnel()
	s.Click(NodeRef{Column: 0, Name: "/"})

	s.Escape()
	assert.Equal(t, "browse", s.View().Mode)
	s.Escape()
	assert.Equal(t, "browse", s.View().Mode)

	assert.False(t, s.CancelFunnel())
	_, err := s.SaveFunnel(context.Background())
	assert.ErrorIs(t, err, ErrNotDrafting)

	s.EnterFunnel()
	assert.True(t, s.CancelFunnel())
	assert.Equal(t, "browse", s.View().Mode)
}

func TestSessionMemoizesUntilInputsChange(t *testing.T) {
	s := newTestSession(t, &recordingSaver{})

	first := s.Flow()
	assert.Same(t, first, s.Flow())

	s.Click(NodeRef{Column: 0, Name: "/"})
	second := s.Flow()
	assert.NotSame(t, first, second)

	s.SetRecords([]PathRecord{MustPathRecord(1, "/", "/x")})
	third := s.Flow()
	assert.NotSame(t, second, third)
	assert.Equal(t, int64(1), third.Columns[0].VisitorCount)
}

func TestSessionEndFunnelIgnoresStaleDraft(t *testing.T) {
	s := newTestSession(t, &recordingSaver{})
	require.True(t, s.EnterFunnel())
	stale, ok := s.Draft()
	require.True(t, ok)

	require.True(t, s.CancelFunnel())
	require.True(t, s.EnterFunnel())
	s.EndFunnel(stale)
	assert.Equal(t, "funnel", s.View().Mode)

	current, _ := s.Draft()
	s.EndFunnel(current)
	assert.Equal(t, "browse", s.View().Mode)
	_, ok = s.Draft()
	assert.False(t, ok)
}

func TestSessionSelectFunnelStepRequiresExistingNode(t *testing.T) {
	s := newTestSession(t, &recordingSaver{})
	assert.False(t, s.SelectFunnelStep(NodeRef{Column: 0, Name: "/"}), "browse mode")

	require.True(t, s.EnterFunnel())
	assert.False(t, s.SelectFunnelStep(NodeRef{Column: 0, Name: "/does-not-exist"}))
	assert.False(t, s.SelectFunnelStep(NodeRef{Column: 0, Name: "/pricing"}), "exists only in column 1")
	assert.False(t, s.SelectFunnelStep(NodeRef{Column: 9, Name: "/"}))
	assert.True(t, s.SelectFunnelStep(NodeRef{Column: 0, Name: "/"}))
	assert.True(t, s.SelectFunnelStep(NodeRef{Column: 1, Name: "/pricing"}))
	assert.True(t, s.SelectFunnelStep(NodeRef{Column: 2, Name: "signup"}))

	assert.Equal(t, []FunnelStep{
		{Column: 0, Type: StepPath, Value: "/"},
		{Column: 1, Type: StepPath, Value: "/pricing"},
		{Column: 2, Type: StepEvent, Value: "signup"},
	}, s.View().Draft)
}

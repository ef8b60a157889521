package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz_portal/pkg/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestManager(h *harness, pub broker.Publisher) *Manager {
	return NewManager(h.options(), ManagerConfig{TickInterval: 5 * time.Millisecond, SubmitTimeout: time.Second}, pub)
}

func TestManager_OpenReusesRunningEngine(t *testing.T) {
	h := newHarness(sampleQuiz(3, 10))
	m := newTestManager(h, nil)
	defer m.Shutdown()

	e1, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	e2, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get("user-1", "quiz-1")
	require.NoError(t, err)
	assert.Same(t, e1, got)

	_, err = m.Get("user-2", "quiz-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestManager_AutoSubmitOnExpiry(t *testing.T) {
	h := newHarness(sampleQuiz(2, 1))
	pub := &recordingPublisher{}
	m := newTestManager(h, pub)
	defer m.Shutdown()

	e, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	updates, cancel, err := m.Subscribe("user-1", "quiz-1")
	require.NoError(t, err)
	defer cancel()

	first := <-updates
	assert.Equal(t, InProgress, first.State)

	h.clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool { return e.State() == Submitted }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, h.grader.Calls())
	assert.Equal(t, 1, pub.Count())

	// keep ticking for a while; still one submission
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.grader.Calls())
}

func TestManager_LeaveKeepsRecord(t *testing.T) {
	h := newHarness(sampleQuiz(3, 10))
	m := newTestManager(h, nil)
	defer m.Shutdown()

	e, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	require.NoError(t, e.SelectAnswer(h.ctx, 2, 3))

	m.Leave("user-1", "quiz-1")
	assert.Equal(t, 0, m.Len())

	h.clock.Advance(10 * time.Second)
	resumed, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.NotSame(t, e, resumed)
	s := resumed.Snapshot()
	assert.Equal(t, 590, s.RemainingSeconds)
	assert.Equal(t, 3, s.Answers[2])
}

func TestManager_CancelReleasesAttempt(t *testing.T) {
	h := newHarness(sampleQuiz(3, 10))
	m := newTestManager(h, nil)
	defer m.Shutdown()

	_, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	updates, _, err := m.Subscribe("user-1", "quiz-1")
	require.NoError(t, err)

	require.NoError(t, m.Cancel(h.ctx, "user-1", "quiz-1"))
	assert.Equal(t, 0, m.Len())

	// subscriber channel is closed after the final snapshot
	var last Snapshot
	for s := range updates {
		last = s
	}
	assert.Equal(t, Cancelled, last.State)

	rec, err := h.store.Load(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestManager_SubmitFlowPublishes(t *testing.T) {
	h := newHarness(sampleQuiz(2, 10))
	pub := &recordingPublisher{}
	m := newTestManager(h, pub)
	defer m.Shutdown()

	_, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)

	submitted, err := m.RequestSubmit(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.False(t, submitted)
	assert.Zero(t, pub.Count())

	resultID, err := m.ConfirmSubmit(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "result-1", resultID)
	assert.Equal(t, 1, pub.Count())

	// a finished attempt is replaced by a fresh one on the next open
	e, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, InProgress, e.State())
}

func TestManager_SubmitReleasesAttempt(t *testing.T) {
	h := newHarness(sampleQuiz(2, 10))
	m := newTestManager(h, nil)
	defer m.Shutdown()

	_, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	updates, cancel, err := m.Subscribe("user-1", "quiz-1")
	require.NoError(t, err)
	defer cancel()

	resultID, err := m.Submit(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "result-1", resultID)
	assert.Equal(t, 0, m.Len())

	var last Snapshot
	for s := range updates {
		last = s
	}
	assert.Equal(t, Submitted, last.State)
	assert.Equal(t, "result-1", last.ResultID)

	_, err = m.Get("user-1", "quiz-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestManager_AutoSubmitReleasesAttempt(t *testing.T) {
	h := newHarness(sampleQuiz(2, 1))
	m := newTestManager(h, nil)
	defer m.Shutdown()

	_, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	updates, cancel, err := m.Subscribe("user-1", "quiz-1")
	require.NoError(t, err)
	defer cancel()

	h.clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)

	var last Snapshot
	for s := range updates {
		last = s
	}
	assert.Equal(t, Submitted, last.State)
	assert.Equal(t, 1, h.grader.Calls())
}

func TestManager_FailedSubmitKeepsAttempt(t *testing.T) {
	h := newHarness(sampleQuiz(2, 10))
	h.grader.fail = errors.New("backend down")
	m := newTestManager(h, nil)
	defer m.Shutdown()

	_, err := m.Open(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)

	_, err = m.Submit(h.ctx, "user-1", "quiz-1")
	require.Error(t, err)
	assert.Equal(t, 1, m.Len())

	e, err := m.Get("user-1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, InProgress, e.State())
}

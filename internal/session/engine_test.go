package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz_portal/internal/model"
	"quiz_portal/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	quiz *model.Quiz
	err  error
}

func (f *fakeSource) FetchQuiz(_ context.Context, _ string) (*model.Quiz, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quiz, nil
}

type fakeGrader struct {
	mu    sync.Mutex
	calls []model.AttemptSubmission
	fail  error
}

func (g *fakeGrader) SubmitAttempt(_ context.Context, _ string, sub model.AttemptSubmission) (*model.SubmitReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sub)
	if g.fail != nil {
		return nil, g.fail
	}
	return &model.SubmitReceipt{ResultID: "result-1"}, nil
}

func (g *fakeGrader) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// brokenKV fails every operation.
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis down")
}
func (brokenKV) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}
func (brokenKV) Delete(context.Context, string) error { return errors.New("redis down") }

func sampleQuiz(questions, minutes int) *model.Quiz {
	q := &model.Quiz{Title: "Sample", DurationMinutes: minutes}
	q.ID = "quiz-1"
	for i := 0; i < questions; i++ {
		q.Questions = append(q.Questions, model.Question{QuestionBody: model.QuestionBody{
			Text:          "question",
			Options:       model.Options{"A": "a", "B": "b", "C": "c", "D": "d"},
			CorrectAnswer: "A",
			Difficulty:    model.Easy,
		}})
	}
	return q
}

type harness struct {
	ctx    context.Context
	clock  *fakeClock
	kv     cache.KV
	store  *Store
	source *fakeSource
	grader *fakeGrader
}

func newHarness(quiz *model.Quiz) *harness {
	kv := cache.NewMemoryKV()
	return &harness{
		ctx:    context.Background(),
		clock:  newClock(),
		kv:     kv,
		store:  NewStore(kv, "test", time.Hour, time.Hour),
		source: &fakeSource{quiz: quiz},
		grader: &fakeGrader{},
	}
}

func (h *harness) options() Options {
	return Options{Store: h.store, Source: h.source, Grader: h.grader, Clock: h.clock.Now}
}

func (h *harness) start(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine("user-1", "quiz-1", h.options())
	require.NoError(t, e.Start(h.ctx))
	return e
}

func TestStart_FreshAttemptIsPersisted(t *testing.T) {
	h := newHarness(sampleQuiz(5, 10))
	e := h.start(t)

	s := e.Snapshot()
	assert.Equal(t, InProgress, s.State)
	assert.Equal(t, 600, s.RemainingSeconds)
	assert.Empty(t, s.Answers)
	assert.Equal(t, 0, s.CurrentQuestionIndex)

	rec, err := h.store.Load(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, h.clock.Now().UnixMilli(), rec.StartTimestamp)
	assert.NotEmpty(t, rec.AttemptKey)
}

func TestSelectAnswer_WriteThenRead(t *testing.T) {
	h := newHarness(sampleQuiz(5, 10))
	e := h.start(t)

	for q := 0; q < 5; q++ {
		for o := 0; o < 4; o++ {
			require.NoError(t, e.SelectAnswer(h.ctx, q, o))
			assert.Equal(t, o, e.Snapshot().Answers[q])
		}
	}

	assert.ErrorIs(t, e.SelectAnswer(h.ctx, 5, 0), ErrInvalidIndex)
	assert.ErrorIs(t, e.SelectAnswer(h.ctx, 0, 4), ErrInvalidIndex)
	assert.ErrorIs(t, e.SelectAnswer(h.ctx, -1, 0), ErrInvalidIndex)
}

func TestReload_RecomputesRemainingFromStart(t *testing.T) {
	h := newHarness(sampleQuiz(5, 10))
	e := h.start(t)
	require.NoError(t, e.SelectAnswer(h.ctx, 0, 1))
	require.NoError(t, e.SelectAnswer(h.ctx, 2, 3))
	require.NoError(t, e.GoTo(h.ctx, 3))

	// simulated reload 61 seconds later
	h.clock.Advance(61 * time.Second)
	reloaded := h.start(t)

	s := reloaded.Snapshot()
	assert.Equal(t, 539, s.RemainingSeconds)
	assert.Equal(t, map[int]int{0: 1, 2: 3}, s.Answers)
	assert.Equal(t, 3, s.CurrentQuestionIndex)

	// far past the deadline
	h.clock.Advance(time.Hour)
	assert.Equal(t, 0, h.start(t).Snapshot().RemainingSeconds)
}

func TestNavigation_Clamps(t *testing.T) {
	h := newHarness(sampleQuiz(3, 1))
	e := h.start(t)

	require.NoError(t, e.Previous(h.ctx))
	assert.Equal(t, 0, e.CurrentIndex())
	require.NoError(t, e.GoTo(h.ctx, 99))
	assert.Equal(t, 2, e.CurrentIndex())
	require.NoError(t, e.Next(h.ctx))
	assert.Equal(t, 2, e.CurrentIndex())
	require.NoError(t, e.GoTo(h.ctx, -4))
	assert.Equal(t, 0, e.CurrentIndex())
	require.NoError(t, e.Next(h.ctx))
	assert.Equal(t, 1, e.CurrentIndex())

	rec, err := h.store.Load(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentQuestionIndex)
}

func TestNavigation_ConcurrentNextAdvancesEachTime(t *testing.T) {
	h := newHarness(sampleQuiz(20, 10))
	e := h.start(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Next(h.ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, e.CurrentIndex())

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.Previous(h.ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, e.CurrentIndex())
}

func TestTick_AutoSubmitsExactlyOnce(t *testing.T) {
	h := newHarness(sampleQuiz(2, 1))
	e := h.start(t)

	fires := 0
	for i := 0; i < 60; i++ {
		h.clock.Advance(time.Second)
		fired, err := e.Tick(h.ctx)
		require.NoError(t, err)
		if fired {
			fires++
		}
	}
	// extra ticks after expiry must not submit again
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
		fired, _ := e.Tick(h.ctx)
		assert.False(t, fired)
	}

	assert.Equal(t, 1, fires)
	assert.Equal(t, 1, h.grader.Calls())
	assert.Equal(t, Submitted, e.State())
	assert.Equal(t, "result-1", e.ResultID())
	assert.InDelta(t, 1.0, h.grader.calls[0].TimeTakenMinutes, 1e-9)
}

func TestTick_FailedAutoSubmitIsNotRepeated(t *testing.T) {
	h := newHarness(sampleQuiz(2, 1))
	h.grader.fail = errors.New("502")
	e := h.start(t)

	h.clock.Advance(2 * time.Minute)
	fired, err := e.Tick(h.ctx)
	assert.True(t, fired)
	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Auto)
	assert.Equal(t, InProgress, e.State())

	fired, err = e.Tick(h.ctx)
	assert.False(t, fired)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.grader.Calls())

	// the user can still submit by hand, without confirmation since time is up
	h.grader.fail = nil
	submitted, err := e.RequestSubmit(h.ctx)
	require.NoError(t, err)
	assert.True(t, submitted)
	assert.Equal(t, Submitted, e.State())
}

func TestSubmit_FailureKeepsAnswersAndRecord(t *testing.T) {
	h := newHarness(sampleQuiz(5, 10))
	e := h.start(t)
	require.NoError(t, e.SelectAnswer(h.ctx, 0, 1))
	require.NoError(t, e.SelectAnswer(h.ctx, 4, 2))
	require.NoError(t, e.GoTo(h.ctx, 4))
	before := e.Snapshot()

	h.grader.fail = errors.New("connection reset")
	h.clock.Advance(90 * time.Second)
	_, err := e.Submit(h.ctx)
	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable())

	after := e.Snapshot()
	assert.Equal(t, InProgress, after.State)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.CurrentQuestionIndex, after.CurrentQuestionIndex)
	assert.True(t, after.Retryable)
	assert.NotEmpty(t, after.Error)

	rec, err := h.store.Load(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, map[int]int{0: 1, 4: 2}, rec.Answers)

	h.grader.fail = nil
	resultID, err := e.Submit(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "result-1", resultID)

	require.Len(t, h.grader.calls, 2)
	first, second := h.grader.calls[0], h.grader.calls[1]
	assert.Equal(t, first.Answers, second.Answers)
	assert.Equal(t, first.AttemptKey, second.AttemptKey)
	require.Len(t, second.Answers, 5)
	assert.Equal(t, "B", *second.Answers[0])
	assert.Nil(t, second.Answers[1])
	assert.Equal(t, "C", *second.Answers[4])

	rec, err = h.store.Load(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, e.Snapshot().Error)
}

func TestSubmit_TimeTakenIsFrozen(t *testing.T) {
	h := newHarness(sampleQuiz(1, 10))
	e := h.start(t)

	h.clock.Advance(3 * time.Minute)
	_, err := e.Submit(h.ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, h.grader.calls[0].TimeTakenMinutes, 1e-9)

	h.clock.Advance(5 * time.Minute)
	assert.Equal(t, 420, e.Snapshot().RemainingSeconds)
	_, err = e.Submit(h.ctx)
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestRequestSubmit_ConfirmAndDismiss(t *testing.T) {
	h := newHarness(sampleQuiz(2, 5))
	e := h.start(t)

	submitted, err := e.RequestSubmit(h.ctx)
	require.NoError(t, err)
	assert.False(t, submitted)
	assert.Equal(t, Confirming, e.State())
	assert.Zero(t, h.grader.Calls())

	require.NoError(t, e.DismissSubmit())
	assert.Equal(t, InProgress, e.State())
	assert.ErrorIs(t, e.DismissSubmit(), ErrNotConfirming)

	_, err = e.RequestSubmit(h.ctx)
	require.NoError(t, err)
	resultID, err := e.ConfirmSubmit(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "result-1", resultID)
	assert.Equal(t, Submitted, e.State())
}

func TestCancel_ClearsRecord(t *testing.T) {
	h := newHarness(sampleQuiz(5, 10))
	e := h.start(t)
	require.NoError(t, e.SelectAnswer(h.ctx, 1, 1))
	h.clock.Advance(30 * time.Second)

	require.NoError(t, e.Cancel(h.ctx))
	assert.Equal(t, Cancelled, e.State())
	assert.Zero(t, h.grader.Calls())
	assert.ErrorIs(t, e.SelectAnswer(h.ctx, 0, 0), ErrNotInProgress)

	rec, err := h.store.Load(h.ctx, "user-1", "quiz-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	fresh := h.start(t).Snapshot()
	assert.Equal(t, 600, fresh.RemainingSeconds)
	assert.Empty(t, fresh.Answers)
}

func TestStorageFailure_IsDegradedNotFatal(t *testing.T) {
	h := newHarness(sampleQuiz(3, 10))
	h.store = NewStore(brokenKV{}, "test", time.Hour, time.Hour)
	e := h.start(t)

	assert.True(t, e.Degraded())
	require.NoError(t, e.SelectAnswer(h.ctx, 0, 2))
	assert.Equal(t, 2, e.Snapshot().Answers[0])
	assert.True(t, e.Snapshot().Degraded)

	_, err := e.Submit(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, Submitted, e.State())
}

func TestStart_FallsBackToCachedPayload(t *testing.T) {
	h := newHarness(sampleQuiz(2, 10))
	h.start(t)

	h.source.err = errors.New("timeout")
	e := h.start(t)
	assert.Equal(t, 2, e.Snapshot().QuestionCount)

	other := NewEngine("user-1", "quiz-2", h.options())
	assert.ErrorIs(t, other.Start(h.ctx), ErrQuizUnavailable)
}

func TestStart_EmptyQuiz(t *testing.T) {
	h := newHarness(sampleQuiz(0, 10))
	e := NewEngine("user-1", "quiz-1", h.options())
	assert.ErrorIs(t, e.Start(h.ctx), ErrEmptyQuiz)
}

func TestQuestions_HideCorrectAnswer(t *testing.T) {
	h := newHarness(sampleQuiz(2, 10))
	e := h.start(t)

	qs := e.Questions()
	require.Len(t, qs, 2)
	assert.Equal(t, 1, qs[1].Index)
	assert.Len(t, qs[0].Options, 4)
}

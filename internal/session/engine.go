// Package session 负责限时作答：倒计时、答案缓存、可恢复的进度记录，以及到时自动提交。
package session

import (
	"context"
	"errors"
	"fmt"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State string

const (
	Loading    State = "loading"
	InProgress State = "in_progress"
	Confirming State = "confirming"
	Submitting State = "submitting"
	Submitted  State = "submitted"
	Cancelled  State = "cancelled"
)

// Active 倒计时是否在走
func (s State) Active() bool {
	return s == InProgress || s == Confirming
}

func (s State) Terminal() bool {
	return s == Submitted || s == Cancelled
}

// QuizSource 加载完整测验（含正确答案）
type QuizSource interface {
	FetchQuiz(ctx context.Context, quizID string) (*model.Quiz, error)
}

// Grader 判分并保存成绩
type Grader interface {
	SubmitAttempt(ctx context.Context, quizID string, sub model.AttemptSubmission) (*model.SubmitReceipt, error)
}

type Options struct {
	Store  *Store
	Source QuizSource
	Grader Grader
	Clock  func() time.Time
	Logger *zap.Logger
}

// Engine 一个用户在一个测验上的一次作答。方法可并发调用，判分请求在锁外进行。
type Engine struct {
	mu sync.Mutex

	userID string
	quizID string
	quiz   *model.Quiz

	duration  time.Duration
	startedAt time.Time
	// remaining 仅在提交开始时冻结，其余时刻由 startedAt 与当前时间推导
	remaining  int
	answers    map[int]int
	current    int
	state      State
	attemptKey string
	resultID   string
	lastErr    error

	degraded      bool
	autoSubmitted bool

	store  *Store
	source QuizSource
	grader Grader
	now    func() time.Time
	log    *zap.Logger
}

func NewEngine(userID, quizID string, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		userID:  userID,
		quizID:  quizID,
		answers: map[int]int{},
		state:   Loading,
		store:   opts.Store,
		source:  opts.Source,
		grader:  opts.Grader,
		now:     clock,
		log:     log.With(zap.String("user", userID), zap.String("quiz", quizID)),
	}
}

// Start 加载测验，恢复或新建进度记录；拉取失败时使用最近一次缓存的测验内容
func (e *Engine) Start(ctx context.Context) error {
	quiz, err := e.source.FetchQuiz(ctx, e.quizID)
	if err != nil {
		cached, cerr := e.store.LoadPayload(ctx, e.quizID)
		if cerr != nil {
			return fmt.Errorf("%w: %v", ErrQuizUnavailable, err)
		}
		e.log.Warn("quiz fetch failed, using cached payload", zap.Error(err))
		quiz = cached
	} else if perr := e.store.SavePayload(ctx, quiz); perr != nil {
		e.log.Warn("cache quiz payload failed", zap.Error(perr))
	}
	if len(quiz.Questions) == 0 {
		return ErrEmptyQuiz
	}

	rec, lerr := e.store.Load(ctx, e.userID, e.quizID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Loading {
		return nil
	}
	e.quiz = quiz
	e.duration = time.Duration(quiz.DurationMinutes) * time.Minute

	if lerr != nil {
		e.markDegraded(lerr)
	}
	if rec != nil {
		e.startedAt = rec.StartedAt()
		e.answers = rec.Answers
		e.current = rec.CurrentQuestionIndex
		e.attemptKey = rec.AttemptKey
		if e.attemptKey == "" {
			e.attemptKey = model.GenerateUUID()
		}
	} else {
		e.startedAt = e.now()
		e.answers = map[int]int{}
		e.current = 0
		e.attemptKey = model.GenerateUUID()
	}
	e.setState(InProgress)
	e.persistLocked(ctx)
	e.log.Debug("attempt started", zap.Bool("restored", rec != nil), zap.Int("remaining", e.remainingLocked()))
	return nil
}

func (e *Engine) setState(s State) {
	e.state = s
	monitoring.AttemptTransitions.WithLabelValues(string(s)).Inc()
}

func (e *Engine) durationSeconds() int {
	return int(e.duration / time.Second)
}

// remainingLocked 由开始时间推导剩余秒数，开始提交后冻结
func (e *Engine) remainingLocked() int {
	switch {
	case e.state == Loading:
		return e.durationSeconds()
	case !e.state.Active():
		return e.remaining
	}
	elapsed := int(e.now().Sub(e.startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	rem := e.durationSeconds() - elapsed
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (e *Engine) markDegraded(err error) {
	if e.degraded {
		return
	}
	e.degraded = true
	monitoring.StorageDegraded.Inc()
	e.log.Warn("attempt storage unavailable, continuing without reload recovery", zap.Error(err))
}

func (e *Engine) persistLocked(ctx context.Context) {
	if e.degraded {
		return
	}
	rec := &Record{
		Answers:              make(map[int]int, len(e.answers)),
		CurrentQuestionIndex: e.current,
		StartTimestamp:       e.startedAt.UnixMilli(),
		AttemptKey:           e.attemptKey,
	}
	for k, v := range e.answers {
		rec.Answers[k] = v
	}
	if err := e.store.Save(ctx, e.userID, e.quizID, rec, e.duration, e.now()); err != nil {
		e.markDegraded(err)
	}
}

func (e *Engine) clearLocked(ctx context.Context) {
	if err := e.store.Clear(ctx, e.userID, e.quizID); err != nil {
		e.log.Warn("clear attempt record failed", zap.Error(err))
	}
}

func (e *Engine) optionCount(q int) int {
	n := 0
	for _, label := range model.OptionLabels {
		if _, ok := e.quiz.Questions[q].Options[label]; ok {
			n++
		}
	}
	return n
}

// SelectAnswer 记录某题所选选项，覆盖之前的选择
func (e *Engine) SelectAnswer(ctx context.Context, questionIndex, optionIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Active() {
		return ErrNotInProgress
	}
	if questionIndex < 0 || questionIndex >= len(e.quiz.Questions) {
		return fmt.Errorf("%w: question %d", ErrInvalidIndex, questionIndex)
	}
	if optionIndex < 0 || optionIndex >= e.optionCount(questionIndex) {
		return fmt.Errorf("%w: option %d", ErrInvalidIndex, optionIndex)
	}
	e.answers[questionIndex] = optionIndex
	e.persistLocked(ctx)
	return nil
}

// GoTo 跳到 index，越界时截断到题目范围内
func (e *Engine) GoTo(ctx context.Context, index int) error {
	return e.move(ctx, func(int) int { return index })
}

func (e *Engine) Next(ctx context.Context) error {
	return e.move(ctx, func(cur int) int { return cur + 1 })
}

func (e *Engine) Previous(ctx context.Context) error {
	return e.move(ctx, func(cur int) int { return cur - 1 })
}

// move 在同一把锁内读取当前题号并写回，并发的 Next 不会落在同一题
func (e *Engine) move(ctx context.Context, target func(cur int) int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Active() {
		return ErrNotInProgress
	}
	index := target(e.current)
	last := len(e.quiz.Questions) - 1
	if index < 0 {
		index = 0
	}
	if index > last {
		index = last
	}
	e.current = index
	e.persistLocked(ctx)
	return nil
}

func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Tick 重新计算倒计时。时间耗尽且尚未自动提交过时，不经确认直接提交，fired 为 true。
// 自动提交失败后不会在之后的 tick 中重试。
func (e *Engine) Tick(ctx context.Context) (fired bool, err error) {
	e.mu.Lock()
	if !e.state.Active() || e.autoSubmitted || e.remainingLocked() > 0 {
		e.mu.Unlock()
		return false, nil
	}
	e.autoSubmitted = true
	sub := e.beginSubmitLocked()
	e.mu.Unlock()

	e.log.Info("time is up, auto-submitting")
	_, err = e.finishSubmit(ctx, sub, true)
	return true, err
}

// RequestSubmit 还有剩余时间时进入确认；倒计时已归零则直接提交。
// submitted 表示是否发起了判分请求。
func (e *Engine) RequestSubmit(ctx context.Context) (submitted bool, err error) {
	e.mu.Lock()
	if e.state != InProgress {
		st := e.state
		e.mu.Unlock()
		if st == Submitting {
			return false, ErrSubmitInFlight
		}
		return false, ErrNotInProgress
	}
	if e.remainingLocked() > 0 {
		e.setState(Confirming)
		e.mu.Unlock()
		return false, nil
	}
	sub := e.beginSubmitLocked()
	e.mu.Unlock()

	_, err = e.finishSubmit(ctx, sub, false)
	return true, err
}

// ConfirmSubmit 确认后提交
func (e *Engine) ConfirmSubmit(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.state != Confirming {
		e.mu.Unlock()
		return "", ErrNotConfirming
	}
	sub := e.beginSubmitLocked()
	e.mu.Unlock()
	return e.finishSubmit(ctx, sub, false)
}

// DismissSubmit 取消确认，继续作答
func (e *Engine) DismissSubmit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Confirming {
		return ErrNotConfirming
	}
	e.setState(InProgress)
	return nil
}

// Submit 不经确认直接提交
func (e *Engine) Submit(ctx context.Context) (string, error) {
	e.mu.Lock()
	if !e.state.Active() {
		st := e.state
		e.mu.Unlock()
		if st == Submitting {
			return "", ErrSubmitInFlight
		}
		return "", ErrNotInProgress
	}
	sub := e.beginSubmitLocked()
	e.mu.Unlock()
	return e.finishSubmit(ctx, sub, false)
}

func (e *Engine) beginSubmitLocked() model.AttemptSubmission {
	e.remaining = e.remainingLocked()
	e.setState(Submitting)
	e.lastErr = nil

	answers := make([]*string, len(e.quiz.Questions))
	for q, o := range e.answers {
		if q < 0 || q >= len(answers) {
			continue
		}
		if letter, ok := model.IndexToLetter(o); ok {
			answers[q] = &letter
		}
	}
	return model.AttemptSubmission{
		Answers:          answers,
		TimeTakenMinutes: float64(e.durationSeconds()-e.remaining) / 60,
		AttemptKey:       e.attemptKey,
	}
}

func (e *Engine) finishSubmit(ctx context.Context, sub model.AttemptSubmission, auto bool) (string, error) {
	receipt, err := e.grader.SubmitAttempt(ctx, e.quizID, sub)
	if err == nil && (receipt == nil || receipt.ResultID == "") {
		err = errors.New("grader returned no result id")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		// 记录与答案保持原样，允许用户重新提交
		e.lastErr = &SubmitError{Err: err, Auto: auto}
		e.setState(InProgress)
		e.log.Warn("submit failed", zap.Bool("auto", auto), zap.Error(err))
		return "", e.lastErr
	}

	e.clearLocked(ctx)
	e.resultID = receipt.ResultID
	e.setState(Submitted)
	e.log.Info("attempt submitted", zap.String("result", receipt.ResultID), zap.Bool("auto", auto))
	return receipt.ResultID, nil
}

// Cancel 放弃作答，删除进度记录，不判分
func (e *Engine) Cancel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Active() {
		if e.state == Submitting {
			return ErrSubmitInFlight
		}
		return ErrNotInProgress
	}
	e.remaining = e.remainingLocked()
	e.clearLocked(ctx)
	e.setState(Cancelled)
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

func (e *Engine) ResultID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultID
}

func (e *Engine) UserID() string { return e.userID }
func (e *Engine) QuizID() string { return e.quizID }

// Snapshot 前端看到的作答状态
type Snapshot struct {
	QuizID               string      `json:"quizId"`
	Title                string      `json:"title"`
	State                State       `json:"state"`
	DurationSeconds      int         `json:"durationSeconds"`
	RemainingSeconds     int         `json:"remainingSeconds"`
	StartTimestamp       int64       `json:"startTimestamp"`
	Answers              map[int]int `json:"answers"`
	CurrentQuestionIndex int         `json:"currentQuestionIndex"`
	QuestionCount        int         `json:"questionCount"`
	ResultID             string      `json:"resultId,omitempty"`
	Error                string      `json:"error,omitempty"`
	Retryable            bool        `json:"retryable,omitempty"`
	Degraded             bool        `json:"degraded,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		QuizID:               e.quizID,
		State:                e.state,
		DurationSeconds:      e.durationSeconds(),
		RemainingSeconds:     e.remainingLocked(),
		StartTimestamp:       e.startedAt.UnixMilli(),
		Answers:              make(map[int]int, len(e.answers)),
		CurrentQuestionIndex: e.current,
		ResultID:             e.resultID,
		Degraded:             e.degraded,
	}
	if e.quiz != nil {
		s.Title = e.quiz.Title
		s.QuestionCount = len(e.quiz.Questions)
	}
	for k, v := range e.answers {
		s.Answers[k] = v
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
		var se *SubmitError
		s.Retryable = errors.As(e.lastErr, &se) && se.Retryable()
	}
	return s
}

// PublicQuestion 作答时展示的题目，不含正确答案与解析
type PublicQuestion struct {
	Index      int              `json:"index"`
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Options    model.Options    `json:"options"`
	Difficulty model.Difficulty `json:"difficulty"`
	Image      string           `json:"image,omitempty"`
}

func (e *Engine) Questions() []PublicQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quiz == nil {
		return nil
	}
	out := make([]PublicQuestion, len(e.quiz.Questions))
	for i, q := range e.quiz.Questions {
		out[i] = PublicQuestion{
			Index:      i,
			ID:         q.ID,
			Text:       q.Text,
			Options:    q.Options,
			Difficulty: q.Difficulty,
			Image:      q.Image,
		}
	}
	return out
}

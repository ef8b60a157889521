package session

import (
	"context"
	"quiz_portal/pkg/broker"
	"quiz_portal/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SubmittedEvent 判分成功后发布
type SubmittedEvent struct {
	UserID   string `json:"userId"`
	QuizID   string `json:"quizId"`
	ResultID string `json:"resultId"`
	Auto     bool   `json:"auto"`
}

type ManagerConfig struct {
	TickInterval  time.Duration
	SubmitTimeout time.Duration
}

type attempt struct {
	id     string
	engine *Engine
	// ctx 保留打开会话时的请求值（远程令牌、trace），但不随请求结束而取消
	ctx  context.Context
	stop chan struct{}
	done chan struct{}

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// Manager 持有所有用户的作答引擎，每个 (用户, 测验) 一个，
// 每个进行中的作答由独立的 ticker goroutine 驱动。
type Manager struct {
	mu       sync.Mutex
	attempts map[string]*attempt

	opts      Options
	cfg       ManagerConfig
	publisher broker.Publisher
	log       *zap.Logger
}

func NewManager(opts Options, cfg ManagerConfig, publisher broker.Publisher) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 15 * time.Second
	}
	if publisher == nil {
		publisher = broker.Noop{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		attempts:  make(map[string]*attempt),
		opts:      opts,
		cfg:       cfg,
		publisher: publisher,
		log:       log,
	}
}

func attemptID(userID, quizID string) string {
	return userID + ":" + quizID
}

// Open 返回正在进行的引擎，没有则新建（存在进度记录时从记录恢复）
func (m *Manager) Open(ctx context.Context, userID, quizID string) (*Engine, error) {
	id := attemptID(userID, quizID)

	m.mu.Lock()
	if a, ok := m.attempts[id]; ok && !a.engine.State().Terminal() {
		m.mu.Unlock()
		return a.engine, nil
	}
	m.mu.Unlock()

	engine := NewEngine(userID, quizID, m.opts)
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok {
		if !a.engine.State().Terminal() {
			// 并发打开，沿用先注册的实例
			return a.engine, nil
		}
		m.stopLocked(id, a)
	}
	a := &attempt{
		id:     id,
		engine: engine,
		ctx:    context.WithoutCancel(ctx),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Snapshot),
	}
	m.attempts[id] = a
	monitoring.ActiveAttempts.Inc()
	go m.run(a)
	return engine, nil
}

func (m *Manager) Get(userID, quizID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID(userID, quizID)]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a.engine, nil
}

func (m *Manager) run(a *attempt) {
	defer close(a.done)
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, m.cfg.SubmitTimeout)
			fired, err := a.engine.Tick(ctx)
			cancel()
			if fired {
				m.afterSubmit(a.engine, err, true)
			}
			m.broadcast(a, a.engine.Snapshot())
			if a.engine.State().Terminal() {
				// 不能走 release：它会等待本 goroutine 退出
				m.mu.Lock()
				if m.attempts[a.id] == a {
					m.stopLocked(a.id, a)
				}
				m.mu.Unlock()
				return
			}
		}
	}
}

func (m *Manager) afterSubmit(e *Engine, err error, auto bool) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if auto {
		monitoring.AutoSubmits.WithLabelValues(result).Inc()
	}
	if err != nil {
		return
	}
	evt := SubmittedEvent{UserID: e.UserID(), QuizID: e.QuizID(), ResultID: e.ResultID(), Auto: auto}
	if perr := m.publisher.Publish(context.Background(), broker.AttemptSubmittedKey, evt); perr != nil {
		m.log.Warn("publish attempt.submitted failed", zap.Error(perr))
	}
}

// Notify 向订阅者推送当前快照
func (m *Manager) Notify(userID, quizID string) {
	m.mu.Lock()
	a, ok := m.attempts[attemptID(userID, quizID)]
	m.mu.Unlock()
	if ok {
		m.broadcast(a, a.engine.Snapshot())
	}
}

func (m *Manager) broadcast(a *attempt, s Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
			// 慢订阅者丢弃本次快照，下一次 tick 会再推送
		}
	}
}

// Subscribe 持续推送快照，直到调用返回的 cancel 或作答被释放（此时通道关闭）
func (m *Manager) Subscribe(userID, quizID string) (<-chan Snapshot, func(), error) {
	m.mu.Lock()
	a, ok := m.attempts[attemptID(userID, quizID)]
	m.mu.Unlock()
	if !ok {
		return nil, nil, ErrAttemptNotFound
	}

	ch := make(chan Snapshot, 4)
	a.subMu.Lock()
	if a.subs == nil {
		a.subMu.Unlock()
		return nil, nil, ErrAttemptNotFound
	}
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	ch <- a.engine.Snapshot()
	a.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.subMu.Lock()
			if c, ok := a.subs[id]; ok {
				delete(a.subs, id)
				close(c)
			}
			a.subMu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Submit 直接判分，成功后释放该作答
func (m *Manager) Submit(ctx context.Context, userID, quizID string) (string, error) {
	e, err := m.Get(userID, quizID)
	if err != nil {
		return "", err
	}
	resultID, err := e.Submit(ctx)
	m.afterSubmit(e, err, false)
	m.settle(e, userID, quizID)
	return resultID, err
}

// RequestSubmit 进入确认；时间已到则直接判分
func (m *Manager) RequestSubmit(ctx context.Context, userID, quizID string) (bool, error) {
	e, err := m.Get(userID, quizID)
	if err != nil {
		return false, err
	}
	submitted, err := e.RequestSubmit(ctx)
	if submitted {
		m.afterSubmit(e, err, false)
	}
	m.settle(e, userID, quizID)
	return submitted, err
}

func (m *Manager) ConfirmSubmit(ctx context.Context, userID, quizID string) (string, error) {
	e, err := m.Get(userID, quizID)
	if err != nil {
		return "", err
	}
	resultID, err := e.ConfirmSubmit(ctx)
	m.afterSubmit(e, err, false)
	m.settle(e, userID, quizID)
	return resultID, err
}

// settle 已结束的作答推送最终快照后释放，否则仅推送当前快照
func (m *Manager) settle(e *Engine, userID, quizID string) {
	if e.State().Terminal() {
		m.release(userID, quizID)
		return
	}
	m.Notify(userID, quizID)
}

// Cancel 放弃作答并删除进度记录
func (m *Manager) Cancel(ctx context.Context, userID, quizID string) error {
	e, err := m.Get(userID, quizID)
	if err != nil {
		return err
	}
	if err := e.Cancel(ctx); err != nil {
		return err
	}
	m.release(userID, quizID)
	return nil
}

// Leave 停止计时并从内存移除，进度记录保留，下次 Open 时恢复
func (m *Manager) Leave(userID, quizID string) {
	m.release(userID, quizID)
}

func (m *Manager) release(userID, quizID string) {
	id := attemptID(userID, quizID)
	m.mu.Lock()
	a, ok := m.attempts[id]
	if ok {
		m.stopLocked(id, a)
	}
	m.mu.Unlock()
	if ok {
		<-a.done
	}
}

// stopLocked 调用方需持有 m.mu
func (m *Manager) stopLocked(id string, a *attempt) {
	delete(m.attempts, id)
	close(a.stop)
	monitoring.ActiveAttempts.Dec()

	final := a.engine.Snapshot()
	a.subMu.Lock()
	for k, ch := range a.subs {
		select {
		case ch <- final:
		default:
			// 缓冲已满时丢弃最旧的一条，保证最终状态送达
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
		delete(a.subs, k)
	}
	a.subs = nil
	a.subMu.Unlock()
}

// Len 内存中的作答数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// Shutdown 停止所有计时，进度记录保留
func (m *Manager) Shutdown() {
	m.mu.Lock()
	held := make([]*attempt, 0, len(m.attempts))
	for id, a := range m.attempts {
		m.stopLocked(id, a)
		held = append(held, a)
	}
	m.mu.Unlock()
	for _, a := range held {
		<-a.done
	}
}

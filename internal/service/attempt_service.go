package service

import (
	"context"
	"fmt"
	"quiz_portal/internal/session"
)

// AttemptView 作答页面需要的全部内容
type AttemptView struct {
	State     session.Snapshot         `json:"state"`
	Questions []session.PublicQuestion `json:"questions"`
}

// NavAction 题目导航动作
type NavAction string

const (
	NavNext     NavAction = "next"
	NavPrevious NavAction = "previous"
	NavGoTo     NavAction = "goto"
)

// AttemptService gates entry through the catalog and drives the session manager.
type AttemptService struct {
	Manager *session.Manager
	Catalog *CatalogService
}

func NewAttemptService(manager *session.Manager, catalog *CatalogService) *AttemptService {
	return &AttemptService{Manager: manager, Catalog: catalog}
}

func view(e *session.Engine) *AttemptView {
	return &AttemptView{State: e.Snapshot(), Questions: e.Questions()}
}

// Start 校验审核状态与口令后打开（或恢复）作答
func (s *AttemptService) Start(ctx context.Context, userID, quizID, passcode string) (*AttemptView, error) {
	if err := s.Catalog.CheckAccess(ctx, userID, quizID, passcode); err != nil {
		return nil, err
	}
	e, err := s.Manager.Open(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	return view(e), nil
}

func (s *AttemptService) View(userID, quizID string) (*AttemptView, error) {
	e, err := s.Manager.Get(userID, quizID)
	if err != nil {
		return nil, err
	}
	return view(e), nil
}

func (s *AttemptService) Answer(ctx context.Context, userID, quizID string, questionIndex, optionIndex int) (session.Snapshot, error) {
	e, err := s.Manager.Get(userID, quizID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := e.SelectAnswer(ctx, questionIndex, optionIndex); err != nil {
		return session.Snapshot{}, err
	}
	s.Manager.Notify(userID, quizID)
	return e.Snapshot(), nil
}

func (s *AttemptService) Navigate(ctx context.Context, userID, quizID string, action NavAction, index int) (session.Snapshot, error) {
	e, err := s.Manager.Get(userID, quizID)
	if err != nil {
		return session.Snapshot{}, err
	}
	switch action {
	case NavNext:
		err = e.Next(ctx)
	case NavPrevious:
		err = e.Previous(ctx)
	case NavGoTo:
		err = e.GoTo(ctx, index)
	default:
		err = fmt.Errorf("unknown navigation action %q", action)
	}
	if err != nil {
		return session.Snapshot{}, err
	}
	s.Manager.Notify(userID, quizID)
	return e.Snapshot(), nil
}

// RequestSubmit 剩余时间大于 0 时进入确认，否则直接判分
func (s *AttemptService) RequestSubmit(ctx context.Context, userID, quizID string) (session.Snapshot, error) {
	return s.submitWith(userID, quizID, func() error {
		_, err := s.Manager.RequestSubmit(ctx, userID, quizID)
		return err
	})
}

func (s *AttemptService) ConfirmSubmit(ctx context.Context, userID, quizID string) (session.Snapshot, error) {
	return s.submitWith(userID, quizID, func() error {
		_, err := s.Manager.ConfirmSubmit(ctx, userID, quizID)
		return err
	})
}

func (s *AttemptService) Submit(ctx context.Context, userID, quizID string) (session.Snapshot, error) {
	return s.submitWith(userID, quizID, func() error {
		_, err := s.Manager.Submit(ctx, userID, quizID)
		return err
	})
}

func (s *AttemptService) DismissSubmit(userID, quizID string) (session.Snapshot, error) {
	e, err := s.Manager.Get(userID, quizID)
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := e.DismissSubmit(); err != nil {
		return session.Snapshot{}, err
	}
	s.Manager.Notify(userID, quizID)
	return e.Snapshot(), nil
}

// submitWith 先取得引擎：提交成功后管理器会释放该作答。
// 提交失败时仍返回快照，前端据此展示可重试错误
func (s *AttemptService) submitWith(userID, quizID string, submit func() error) (session.Snapshot, error) {
	e, err := s.Manager.Get(userID, quizID)
	if err != nil {
		return session.Snapshot{}, err
	}
	err = submit()
	return e.Snapshot(), err
}

func (s *AttemptService) Cancel(ctx context.Context, userID, quizID string) error {
	return s.Manager.Cancel(ctx, userID, quizID)
}

// Leave 离开作答页：停止计时，保留本地记录以便恢复
func (s *AttemptService) Leave(userID, quizID string) {
	s.Manager.Leave(userID, quizID)
}

func (s *AttemptService) Subscribe(userID, quizID string) (<-chan session.Snapshot, func(), error) {
	return s.Manager.Subscribe(userID, quizID)
}

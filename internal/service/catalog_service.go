package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"quiz_portal/internal/composer"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/security"
	"sync/atomic"
)

var ErrTooManyPasscodeAttempts = errors.New("too many passcode attempts, try again later")

// QuizSummary 面向学生的测验信息，不包含口令与题目
type QuizSummary struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Thumbnail       string             `json:"thumbnail"`
	DurationMinutes int                `json:"durationMinutes"`
	Author          string             `json:"author"`
	Category        model.CategoryPath `json:"categoryPath"`
	QuestionCount   int                `json:"questionCount,omitempty"`
	HasPasscode     bool               `json:"hasPasscode"`
}

func Summarize(q *model.Quiz) QuizSummary {
	return QuizSummary{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		Thumbnail:       q.Thumbnail,
		DurationMinutes: q.DurationMinutes,
		Author:          q.Author,
		Category:        q.Category,
		QuestionCount:   len(q.Questions),
		HasPasscode:     q.HasPasscode(),
	}
}

type CatalogService struct {
	Backend QuizStore
	Limiter *security.KeyedLimiter

	passcodeLength atomic.Int64
	pageSize       atomic.Int64
}

func NewCatalogService(backend QuizStore, limiter *security.KeyedLimiter, passcodeLength, pageSize int) *CatalogService {
	s := &CatalogService{Backend: backend, Limiter: limiter}
	s.SetLimits(passcodeLength, pageSize)
	return s
}

// SetLimits 配置热更新
func (s *CatalogService) SetLimits(passcodeLength, pageSize int) {
	s.passcodeLength.Store(int64(passcodeLength))
	if pageSize <= 0 {
		pageSize = 20
	}
	s.pageSize.Store(int64(pageSize))
}

func (s *CatalogService) PasscodeLength() int {
	return int(s.passcodeLength.Load())
}

func (s *CatalogService) PageSize() int {
	return int(s.pageSize.Load())
}

// List 只返回已审核通过的测验
func (s *CatalogService) List(ctx context.Context, filter model.QuizFilter) ([]QuizSummary, int64, error) {
	filter.Status = model.Approved
	if filter.Limit <= 0 {
		filter.Limit = s.PageSize()
	}
	page, err := s.Backend.ListQuizzes(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]QuizSummary, 0, len(page.Items))
	for i := range page.Items {
		if page.Items[i].ApprovalStatus != model.Approved {
			continue
		}
		out = append(out, Summarize(&page.Items[i]))
	}
	return out, page.Total, nil
}

func (s *CatalogService) available(ctx context.Context, id string) (*model.Quiz, error) {
	quiz, err := s.Backend.FetchQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if quiz.ApprovalStatus != model.Approved {
		return nil, util.ErrQuizNotAvailable
	}
	return quiz, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*QuizSummary, error) {
	quiz, err := s.available(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(quiz)
	return &summary, nil
}

// CheckAccess 进入作答前的门禁：测验必须已审核，设有口令时必须完全一致。
// 口令尝试按 (用户, 测验) 限流。
func (s *CatalogService) CheckAccess(ctx context.Context, userID, quizID, passcode string) error {
	quiz, err := s.available(ctx, quizID)
	if err != nil {
		return err
	}
	if !quiz.HasPasscode() {
		return nil
	}
	if passcode == "" {
		return util.ErrWrongPasscode
	}
	if s.Limiter != nil && !s.Limiter.Allow(userID+":"+quizID) {
		return ErrTooManyPasscodeAttempts
	}
	// 按已保存口令的长度校验格式：passcode_length 热更新后旧测验仍可进入
	if !composer.ValidPasscode(passcode, len(quiz.Passcode)) {
		return util.ErrPasscodeFormat
	}
	if subtle.ConstantTimeCompare([]byte(passcode), []byte(quiz.Passcode)) != 1 {
		return util.ErrWrongPasscode
	}
	return nil
}

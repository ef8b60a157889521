package service

import (
	"context"
	"errors"
	"fmt"
	"quiz_portal/internal/composer"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/broker"
	"quiz_portal/pkg/cache"
	"quiz_portal/pkg/logger"
	"time"

	"go.uber.org/zap"
)

const draftTTL = 7 * 24 * time.Hour

// ComposerBackend 组卷需要的后端能力
type ComposerBackend interface {
	QuizStore
	QuestionBank
	QuestionGenerator
	CategorySource
}

// QuizSavedEvent 组卷保存后发布
type QuizSavedEvent struct {
	QuizID        string `json:"quizId"`
	AuthorID      string `json:"authorId"`
	QuestionCount int    `json:"questionCount"`
	Created       bool   `json:"created"`
}

// BankView 题库游标当前题目
type BankView struct {
	Current   *model.Question `json:"current"`
	Remaining int             `json:"remaining"`
	Added     int             `json:"added"`
}

// ComposerService keeps one draft per administrator in the KV cache and saves it
// to the backend in a single batch.
type ComposerService struct {
	Backend   ComposerBackend
	KV        cache.KV
	Publisher broker.Publisher
	Catalog   *CatalogService
}

func NewComposerService(backend ComposerBackend, kv cache.KV, publisher broker.Publisher, catalog *CatalogService) *ComposerService {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	return &ComposerService{Backend: backend, KV: kv, Publisher: publisher, Catalog: catalog}
}

func draftKey(userID string) string {
	return "draft:" + userID
}

func (s *ComposerService) Draft(ctx context.Context, userID string) (*composer.Draft, error) {
	var d composer.Draft
	err := cache.GetJSON(ctx, s.KV, draftKey(userID), &d)
	if errors.Is(err, cache.ErrNotFound) {
		return composer.NewDraft(), nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *ComposerService) store(ctx context.Context, userID string, d *composer.Draft) error {
	return cache.SetJSON(ctx, s.KV, draftKey(userID), d, draftTTL)
}

// mutate 读取草稿、修改并写回；fn 出错时不写回
func (s *ComposerService) mutate(ctx context.Context, userID string, fn func(d *composer.Draft) error) (*composer.Draft, error) {
	d, err := s.Draft(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return d, err
	}
	if err := s.store(ctx, userID, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *ComposerService) Reset(ctx context.Context, userID string) error {
	return s.KV.Delete(ctx, draftKey(userID))
}

// Edit 把已有测验载入草稿，覆盖当前草稿
func (s *ComposerService) Edit(ctx context.Context, userID, quizID string) (*composer.Draft, error) {
	quiz, err := s.Backend.FetchQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	d := composer.FromQuiz(quiz)
	if err := s.store(ctx, userID, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *ComposerService) UpdateMeta(ctx context.Context, userID string, meta composer.Meta) (*composer.Draft, error) {
	return s.mutate(ctx, userID, func(d *composer.Draft) error {
		d.SetMeta(meta)
		return nil
	})
}

func (s *ComposerService) AddQuestion(ctx context.Context, userID string, q model.Question) (*composer.Draft, error) {
	return s.mutate(ctx, userID, func(d *composer.Draft) error {
		return d.AddQuestion(q)
	})
}

func (s *ComposerService) UpdateQuestion(ctx context.Context, userID string, index int, q model.Question) (*composer.Draft, error) {
	return s.mutate(ctx, userID, func(d *composer.Draft) error {
		return d.UpdateQuestion(index, q)
	})
}

func (s *ComposerService) RemoveQuestion(ctx context.Context, userID string, index int) (*composer.Draft, error) {
	return s.mutate(ctx, userID, func(d *composer.Draft) error {
		return d.RemoveQuestion(index)
	})
}

func bankView(d *composer.Draft) *BankView {
	v := &BankView{}
	if d.Bank == nil {
		return v
	}
	v.Remaining = d.Bank.Remaining()
	v.Added = d.Bank.Added
	if cur, err := d.BankCurrent(); err == nil {
		v.Current = cur
	}
	return v
}

// LoadBank 按草稿当前分类（或指定分类）拉取题库；空题库返回 composer.ErrEmptyBank
func (s *ComposerService) LoadBank(ctx context.Context, userID string, path *model.CategoryPath) (*BankView, error) {
	d, err := s.mutate(ctx, userID, func(d *composer.Draft) error {
		target := d.Category
		if path != nil {
			target = *path
		}
		items, err := s.Backend.ListBankQuestions(ctx, target)
		if err != nil {
			return err
		}
		// 空题库也要写回，清掉旧游标
		if lerr := d.LoadBank(target, items); lerr != nil {
			if serr := s.store(ctx, userID, d); serr != nil {
				return serr
			}
			return lerr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bankView(d), nil
}

func (s *ComposerService) BankAdd(ctx context.Context, userID string) (*BankView, error) {
	d, err := s.mutate(ctx, userID, func(d *composer.Draft) error {
		_, err := d.BankAdd()
		return err
	})
	if err != nil {
		return nil, err
	}
	return bankView(d), nil
}

func (s *ComposerService) BankSkip(ctx context.Context, userID string) (*BankView, error) {
	d, err := s.mutate(ctx, userID, func(d *composer.Draft) error {
		return d.BankSkip()
	})
	if err != nil {
		return nil, err
	}
	return bankView(d), nil
}

// Generate AI 出题并追加到草稿；未指定分类时使用草稿分类
func (s *ComposerService) Generate(ctx context.Context, userID string, spec model.GenerationSpec) (int, error) {
	var added int
	_, err := s.mutate(ctx, userID, func(d *composer.Draft) error {
		if spec.Category.Depth() == 0 {
			spec.Category = d.Category
		}
		qs, err := s.Backend.GenerateQuestionsAI(ctx, spec)
		if err != nil {
			return err
		}
		added, err = d.AddGenerated(qs)
		return err
	})
	return added, err
}

// Extract 从文档抽题；一题都没有时返回 composer.ErrNoQuestionsExtracted，草稿不变
func (s *ComposerService) Extract(ctx context.Context, userID string, doc model.Document) (int, error) {
	var added int
	_, err := s.mutate(ctx, userID, func(d *composer.Draft) error {
		qs, err := s.Backend.ExtractQuestionsFromDocument(ctx, doc)
		if err != nil {
			return err
		}
		added, err = d.AddExtracted(qs)
		return err
	})
	return added, err
}

// Save 校验草稿后一次性保存到后端，成功后删除草稿。
// 校验失败时返回 form.Errors。
func (s *ComposerService) Save(ctx context.Context, userID, author string) (*model.Quiz, error) {
	d, err := s.Draft(ctx, userID)
	if err != nil {
		return nil, err
	}

	tree, err := s.Backend.FetchCategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	if errs := d.Validate(s.Catalog.PasscodeLength(), tree); !errs.Empty() {
		return nil, errs
	}

	quiz := d.Build()
	var saved *model.Quiz
	created := d.QuizID == ""
	if created {
		quiz.Author = author
		quiz.AuthorID = userID
		quiz.ApprovalStatus = model.WaitingForApproval
		saved, err = s.Backend.SaveQuiz(ctx, quiz)
	} else {
		saved, err = s.Backend.UpdateQuiz(ctx, d.QuizID, quiz)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Reset(ctx, userID); err != nil {
		logger.Log.Warn("failed to clear draft", zap.String("user_id", userID), zap.Error(err))
	}

	evt := QuizSavedEvent{QuizID: saved.ID, AuthorID: userID, QuestionCount: len(quiz.Questions), Created: created}
	if err := s.Publisher.Publish(ctx, broker.QuizSavedKey, evt); err != nil {
		logger.Log.Warn("publish quiz.saved failed", zap.Error(err))
	}
	return saved, nil
}

// ListAll 管理端列表，不限审核状态
func (s *ComposerService) ListAll(ctx context.Context, filter model.QuizFilter) (*model.QuizPage, error) {
	return s.Backend.ListQuizzes(ctx, filter)
}

func (s *ComposerService) Delete(ctx context.Context, quizID string) error {
	return s.Backend.DeleteQuiz(ctx, quizID)
}

func (s *ComposerService) SetStatus(ctx context.Context, quizID string, status model.ApprovalStatus) error {
	return s.Backend.SetApprovalStatus(ctx, quizID, status)
}

// ContributeBank 把题目加入共享题库
func (s *ComposerService) ContributeBank(ctx context.Context, path model.CategoryPath, questions []model.Question) error {
	var errs form.Errors
	if !path.Complete() {
		errs.Add("categoryPath", "Category path must be selected down to the chapter")
	}
	if len(questions) == 0 {
		errs.Add("questions", "Add at least one question")
	}
	normalized := make([]model.Question, len(questions))
	for i, q := range questions {
		normalized[i] = composer.NormalizeQuestion(q)
		errs.Merge(composer.ValidateQuestion(normalized[i], fmt.Sprintf("questions[%d]", i)))
	}
	if !errs.Empty() {
		return errs
	}
	return s.Backend.AddBankQuestions(ctx, path, normalized)
}

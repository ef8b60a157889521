package service

import (
	"context"
	"errors"
	"fmt"
	"quiz_portal/internal/model"
	"quiz_portal/internal/repository"
	"quiz_portal/internal/util"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LocalBackend implements Backend on the portal's own database.
type LocalBackend struct {
	Users      *repository.UserRepository
	Quizzes    *repository.QuizRepository
	Bank       *repository.BankRepository
	Categories *repository.CategoryRepository
	Results    *repository.AttemptResultRepository
	Reports    *repository.ReportRepository
	Extractor  *ExtractService
	AI         *AIService
}

func NewLocalBackend(db *gorm.DB, extractor *ExtractService, ai *AIService) *LocalBackend {
	return &LocalBackend{
		Users:      repository.NewUserRepository(db),
		Quizzes:    repository.NewQuizRepository(db),
		Bank:       repository.NewBankRepository(db),
		Categories: repository.NewCategoryRepository(db),
		Results:    repository.NewAttemptResultRepository(db),
		Reports:    repository.NewReportRepository(db),
		Extractor:  extractor,
		AI:         ai,
	}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func (b *LocalBackend) FetchQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	quiz, err := b.Quizzes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, util.ErrQuizNotFound)
	}
	return quiz, nil
}

func (b *LocalBackend) ListQuizzes(ctx context.Context, filter model.QuizFilter) (*model.QuizPage, error) {
	items, total, err := b.Quizzes.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.QuizPage{Items: items, Total: total}, nil
}

func (b *LocalBackend) SaveQuiz(ctx context.Context, quiz *model.Quiz) (*model.Quiz, error) {
	quiz.ID = ""
	if quiz.ApprovalStatus == "" {
		quiz.ApprovalStatus = model.WaitingForApproval
	}
	for i := range quiz.Questions {
		quiz.Questions[i].ID = ""
		quiz.Questions[i].Position = i
	}
	if err := b.Quizzes.Create(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (b *LocalBackend) UpdateQuiz(ctx context.Context, id string, quiz *model.Quiz) (*model.Quiz, error) {
	existing, err := b.Quizzes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, util.ErrQuizNotFound)
	}
	quiz.ID = id
	quiz.CreatedAt = existing.CreatedAt
	if quiz.ApprovalStatus == "" {
		quiz.ApprovalStatus = existing.ApprovalStatus
	}

	// 只保留属于本测验的题目 ID，其余当作新题
	owned := make(map[string]struct{}, len(existing.Questions))
	for _, q := range existing.Questions {
		owned[q.ID] = struct{}{}
	}
	for i := range quiz.Questions {
		if _, ok := owned[quiz.Questions[i].ID]; !ok {
			quiz.Questions[i].ID = ""
		}
	}

	if err := b.Quizzes.Update(ctx, quiz); err != nil {
		return nil, err
	}
	return b.Quizzes.FindByID(ctx, id)
}

func (b *LocalBackend) DeleteQuiz(ctx context.Context, id string) error {
	return notFound(b.Quizzes.Delete(ctx, id), util.ErrQuizNotFound)
}

func (b *LocalBackend) SetApprovalStatus(ctx context.Context, id string, status model.ApprovalStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown approval status %q", status)
	}
	return notFound(b.Quizzes.SetStatus(ctx, id, status), util.ErrQuizNotFound)
}

// SubmitAttempt 判分。相同 AttemptKey 的重复提交返回第一次的成绩
func (b *LocalBackend) SubmitAttempt(ctx context.Context, quizID string, sub model.AttemptSubmission) (*model.SubmitReceipt, error) {
	if sub.AttemptKey != "" {
		prev, err := b.Results.FindByAttemptKey(ctx, sub.AttemptKey)
		if err == nil {
			return &model.SubmitReceipt{ResultID: prev.ID}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	quiz, err := b.Quizzes.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, util.ErrQuizNotFound)
	}

	result := Grade(quiz, sub)
	result.UserID = util.UserID(ctx)
	if err := b.Results.Create(ctx, result); err != nil {
		return nil, err
	}
	return &model.SubmitReceipt{ResultID: result.ID}, nil
}

// Grade scores sub against the quiz's correct answers. Score is a percentage.
func Grade(quiz *model.Quiz, sub model.AttemptSubmission) *model.AttemptResult {
	result := &model.AttemptResult{
		QuizID:           quiz.ID,
		AttemptKey:       sub.AttemptKey,
		TimeTakenMinutes: sub.TimeTakenMinutes,
	}
	details := make([]model.QuestionOutcome, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		var selected *string
		if i < len(sub.Answers) && sub.Answers[i] != nil {
			s := strings.ToUpper(strings.TrimSpace(*sub.Answers[i]))
			selected = &s
		}
		outcome := model.QuestionOutcome{
			QuestionID: q.ID,
			Text:       q.Text,
			Options:    q.Options,
			Selected:   selected,
			Correct:    q.CorrectAnswer,
		}
		switch {
		case selected == nil:
			result.Unanswered++
		case *selected == q.CorrectAnswer:
			outcome.IsCorrect = true
			result.Correct++
		default:
			result.Incorrect++
		}
		details = append(details, outcome)
	}
	if n := len(quiz.Questions); n > 0 {
		result.Score = float64(result.Correct) * 100 / float64(n)
	}
	result.Details = datatypes.NewJSONSlice(details)
	return result
}

func (b *LocalBackend) FetchResult(ctx context.Context, resultID string) (*model.AttemptResult, error) {
	result, err := b.Results.FindByID(ctx, resultID)
	if err != nil {
		return nil, notFound(err, util.ErrResultNotFound)
	}
	return result, nil
}

func (b *LocalBackend) SubmitReport(ctx context.Context, report *model.QuestionReport) error {
	if report.SubmittedAt.IsZero() {
		report.SubmittedAt = time.Now()
	}
	return b.Reports.Create(ctx, report)
}

func (b *LocalBackend) ListReports(ctx context.Context, quizID string) ([]model.QuestionReport, error) {
	return b.Reports.ListByQuiz(ctx, quizID)
}

func (b *LocalBackend) FetchCategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	return b.Categories.LoadTree(ctx)
}

func (b *LocalBackend) SaveCategoryTree(ctx context.Context, tree []model.CategoryNode) error {
	return b.Categories.ReplaceTree(ctx, tree)
}

func (b *LocalBackend) ListBankQuestions(ctx context.Context, path model.CategoryPath) ([]model.Question, error) {
	items, err := b.Bank.ListByCategory(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]model.Question, 0, len(items))
	for _, item := range items {
		out = append(out, item.AsQuestion())
	}
	return out, nil
}

func (b *LocalBackend) AddBankQuestions(ctx context.Context, path model.CategoryPath, questions []model.Question) error {
	items := make([]model.BankQuestion, 0, len(questions))
	for _, q := range questions {
		items = append(items, model.BankQuestion{Category: path, QuestionBody: q.QuestionBody})
	}
	return b.Bank.CreateBatch(ctx, items)
}

func (b *LocalBackend) ExtractQuestionsFromDocument(ctx context.Context, doc model.Document) ([]model.Question, error) {
	return b.Extractor.Extract(ctx, doc)
}

func (b *LocalBackend) GenerateQuestionsAI(ctx context.Context, spec model.GenerationSpec) ([]model.Question, error) {
	if b.AI == nil || !b.AI.IsAvailable() {
		return nil, util.ErrAIUnavailable
	}
	return b.AI.GenerateQuestions(ctx, spec)
}

func (b *LocalBackend) Login(ctx context.Context, email, password string) (*model.AuthSession, error) {
	user, err := b.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}
	return &model.AuthSession{User: *user}, nil
}

func (b *LocalBackend) Signup(ctx context.Context, req model.SignupRequest) (*model.AuthSession, error) {
	_, err := b.Users.FindByEmail(ctx, req.Email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     model.Student,
	}
	if err := b.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return &model.AuthSession{User: *user}, nil
}

var _ Backend = (*LocalBackend)(nil)

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
)

// memoryBackend 测试用内存后端
type memoryBackend struct {
	mu        sync.Mutex
	quizzes   map[string]*model.Quiz
	tree      []model.CategoryNode
	bank      []model.Question
	extracted []model.Question
	generated []model.Question
	reports   []model.QuestionReport
	results   map[string]*model.AttemptResult
	nextID    int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		quizzes: make(map[string]*model.Quiz),
		results: make(map[string]*model.AttemptResult),
	}
}

func (m *memoryBackend) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memoryBackend) FetchQuiz(_ context.Context, id string) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memoryBackend) ListQuizzes(_ context.Context, filter model.QuizFilter) (*model.QuizPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page := &model.QuizPage{}
	for _, q := range m.quizzes {
		if filter.Status != "" && q.ApprovalStatus != filter.Status {
			continue
		}
		if !q.Category.HasPrefix(filter.Category) {
			continue
		}
		if filter.Search != "" && !strings.Contains(q.Title, filter.Search) {
			continue
		}
		page.Items = append(page.Items, *q)
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

func (m *memoryBackend) SaveQuiz(_ context.Context, quiz *model.Quiz) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quiz.ID = m.id("quiz")
	m.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (m *memoryBackend) UpdateQuiz(_ context.Context, id string, quiz *model.Quiz) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return nil, util.ErrQuizNotFound
	}
	quiz.ID = id
	m.quizzes[id] = quiz
	return quiz, nil
}

func (m *memoryBackend) DeleteQuiz(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quizzes, id)
	return nil
}

func (m *memoryBackend) SetApprovalStatus(_ context.Context, id string, status model.ApprovalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return util.ErrQuizNotFound
	}
	q.ApprovalStatus = status
	return nil
}

func (m *memoryBackend) SubmitAttempt(_ context.Context, quizID string, sub model.AttemptSubmission) (*model.SubmitReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quiz, ok := m.quizzes[quizID]
	if !ok {
		return nil, util.ErrQuizNotFound
	}
	r := Grade(quiz, sub)
	r.ID = m.id("result")
	m.results[r.ID] = r
	return &model.SubmitReceipt{ResultID: r.ID}, nil
}

func (m *memoryBackend) FetchResult(_ context.Context, id string) (*model.AttemptResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return nil, util.ErrResultNotFound
	}
	return r, nil
}

func (m *memoryBackend) SubmitReport(_ context.Context, r *model.QuestionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *r)
	return nil
}

func (m *memoryBackend) ListReports(_ context.Context, quizID string) ([]model.QuestionReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QuestionReport
	for _, r := range m.reports {
		if r.QuizID == quizID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryBackend) FetchCategoryTree(context.Context) ([]model.CategoryNode, error) {
	return m.tree, nil
}

func (m *memoryBackend) SaveCategoryTree(_ context.Context, tree []model.CategoryNode) error {
	m.tree = tree
	return nil
}

func (m *memoryBackend) ListBankQuestions(context.Context, model.CategoryPath) ([]model.Question, error) {
	return m.bank, nil
}

func (m *memoryBackend) AddBankQuestions(_ context.Context, _ model.CategoryPath, qs []model.Question) error {
	m.bank = append(m.bank, qs...)
	return nil
}

func (m *memoryBackend) ExtractQuestionsFromDocument(context.Context, model.Document) ([]model.Question, error) {
	return m.extracted, nil
}

func (m *memoryBackend) GenerateQuestionsAI(context.Context, model.GenerationSpec) ([]model.Question, error) {
	return m.generated, nil
}

func (m *memoryBackend) Login(context.Context, string, string) (*model.AuthSession, error) {
	return nil, util.ErrInvalidCredentials
}

func (m *memoryBackend) Signup(_ context.Context, req model.SignupRequest) (*model.AuthSession, error) {
	return &model.AuthSession{User: model.User{Name: req.Name, Email: req.Email, Role: model.Student}}, nil
}

var _ Backend = (*memoryBackend)(nil)

func sampleQuestion(text, answer string) model.Question {
	return model.Question{QuestionBody: model.QuestionBody{
		Text:          text,
		Options:       model.Options{"A": "one", "B": "two", "C": "three", "D": "four"},
		CorrectAnswer: answer,
		Difficulty:    model.Easy,
	}}
}

func chapterPath() model.CategoryPath {
	return model.CategoryPath{Region: "North", ExamType: "Entrance", SpecificClass: "Grade 9", Subject: "Math", Chapter: "Algebra"}
}

func chapterTree() []model.CategoryNode {
	return []model.CategoryNode{{Name: "North", Level: model.LevelRegion, Children: []model.CategoryNode{
		{Name: "Entrance", Level: model.LevelExamType, Children: []model.CategoryNode{
			{Name: "Grade 9", Level: model.LevelSpecificClass, Children: []model.CategoryNode{
				{Name: "Math", Level: model.LevelSubject, Children: []model.CategoryNode{
					{Name: "Algebra", Level: model.LevelChapter},
				}},
			}},
		}},
	}}}
}

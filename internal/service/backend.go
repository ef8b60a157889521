package service

import (
	"context"
	"quiz_portal/internal/model"
)

// QuizStore 测验的读写
type QuizStore interface {
	FetchQuiz(ctx context.Context, id string) (*model.Quiz, error)
	ListQuizzes(ctx context.Context, filter model.QuizFilter) (*model.QuizPage, error)
	SaveQuiz(ctx context.Context, quiz *model.Quiz) (*model.Quiz, error)
	UpdateQuiz(ctx context.Context, id string, quiz *model.Quiz) (*model.Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	SetApprovalStatus(ctx context.Context, id string, status model.ApprovalStatus) error
}

// AttemptGrader 判分与成绩查询
type AttemptGrader interface {
	SubmitAttempt(ctx context.Context, quizID string, sub model.AttemptSubmission) (*model.SubmitReceipt, error)
	FetchResult(ctx context.Context, resultID string) (*model.AttemptResult, error)
}

type ReportSink interface {
	SubmitReport(ctx context.Context, report *model.QuestionReport) error
	ListReports(ctx context.Context, quizID string) ([]model.QuestionReport, error)
}

type CategorySource interface {
	FetchCategoryTree(ctx context.Context) ([]model.CategoryNode, error)
	SaveCategoryTree(ctx context.Context, tree []model.CategoryNode) error
}

type QuestionBank interface {
	ListBankQuestions(ctx context.Context, path model.CategoryPath) ([]model.Question, error)
	AddBankQuestions(ctx context.Context, path model.CategoryPath, questions []model.Question) error
}

// QuestionGenerator 文档抽题与 AI 出题，都可能返回空列表
type QuestionGenerator interface {
	ExtractQuestionsFromDocument(ctx context.Context, doc model.Document) ([]model.Question, error)
	GenerateQuestionsAI(ctx context.Context, spec model.GenerationSpec) ([]model.Question, error)
}

// Identity 登录注册。返回的 AuthSession.Token 为后端令牌（本地模式为空）
type Identity interface {
	Login(ctx context.Context, email, password string) (*model.AuthSession, error)
	Signup(ctx context.Context, req model.SignupRequest) (*model.AuthSession, error)
}

// Backend is everything the portal delegates to the quiz backend. It is implemented
// by the remote REST client and by LocalBackend.
type Backend interface {
	QuizStore
	AttemptGrader
	ReportSink
	CategorySource
	QuestionBank
	QuestionGenerator
	Identity
}

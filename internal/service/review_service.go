package service

import (
	"context"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/broker"
	"quiz_portal/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReviewRow 成绩页的一行：选择与正确答案对照
type ReviewRow struct {
	Index      int           `json:"index"`
	QuestionID string        `json:"questionId"`
	Text       string        `json:"text"`
	Options    model.Options `json:"options"`
	Selected   *string       `json:"selected"`
	Correct    string        `json:"correct"`
	Answered   bool          `json:"answered"`
	IsCorrect  bool          `json:"isCorrect"`
}

type ResultView struct {
	ID               string      `json:"id"`
	QuizID           string      `json:"quizId"`
	Score            float64     `json:"score"`
	Correct          int         `json:"correct"`
	Incorrect        int         `json:"incorrect"`
	Unanswered       int         `json:"unanswered"`
	TimeTakenMinutes float64     `json:"timeTaken"`
	Rows             []ReviewRow `json:"rows"`
}

type ReportRequest struct {
	QuestionID  string `json:"questionId"`
	QuizID      string `json:"quizId"`
	Description string `json:"description"`
}

type ReportedEvent struct {
	QuestionID string `json:"questionId"`
	QuizID     string `json:"quizId"`
	UserID     string `json:"userId"`
}

type ReviewBackend interface {
	AttemptGrader
	ReportSink
}

type ReviewService struct {
	Backend   ReviewBackend
	Publisher broker.Publisher
}

func NewReviewService(backend ReviewBackend, publisher broker.Publisher) *ReviewService {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	return &ReviewService{Backend: backend, Publisher: publisher}
}

func (s *ReviewService) Result(ctx context.Context, resultID string) (*ResultView, error) {
	result, err := s.Backend.FetchResult(ctx, resultID)
	if err != nil {
		return nil, err
	}
	v := &ResultView{
		ID:               result.ID,
		QuizID:           result.QuizID,
		Score:            result.Score,
		Correct:          result.Correct,
		Incorrect:        result.Incorrect,
		Unanswered:       result.Unanswered,
		TimeTakenMinutes: result.TimeTakenMinutes,
		Rows:             make([]ReviewRow, 0, len(result.Details)),
	}
	for i, d := range result.Details {
		v.Rows = append(v.Rows, ReviewRow{
			Index:      i,
			QuestionID: d.QuestionID,
			Text:       d.Text,
			Options:    d.Options,
			Selected:   d.Selected,
			Correct:    d.Correct,
			Answered:   d.Selected != nil,
			IsCorrect:  d.IsCorrect,
		})
	}
	return v, nil
}

// Report 提交题目纠错，description 必填
func (s *ReviewService) Report(ctx context.Context, userID string, req ReportRequest) error {
	var errs form.Errors
	errs.Require("questionId", "Question", req.QuestionID)
	errs.Require("quizId", "Quiz", req.QuizID)
	errs.Require("description", "Description", req.Description)
	if !errs.Empty() {
		return errs
	}

	report := &model.QuestionReport{
		QuestionID:  req.QuestionID,
		QuizID:      req.QuizID,
		UserID:      userID,
		Description: strings.TrimSpace(req.Description),
		SubmittedAt: time.Now(),
	}
	if err := s.Backend.SubmitReport(ctx, report); err != nil {
		return err
	}

	evt := ReportedEvent{QuestionID: req.QuestionID, QuizID: req.QuizID, UserID: userID}
	if err := s.Publisher.Publish(ctx, broker.QuestionReportedKey, evt); err != nil {
		logger.Log.Warn("publish question.reported failed", zap.Error(err))
	}
	return nil
}

func (s *ReviewService) Reports(ctx context.Context, quizID string) ([]model.QuestionReport, error) {
	return s.Backend.ListReports(ctx, quizID)
}

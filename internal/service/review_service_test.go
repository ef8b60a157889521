package service

import (
	"context"
	"testing"

	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReview_ResultRows(t *testing.T) {
	b := newMemoryBackend()
	b.quizzes["q1"] = &model.Quiz{
		UUIDBase:  model.UUIDBase{ID: "q1"},
		Questions: []model.Question{sampleQuestion("one", "A"), sampleQuestion("two", "B")},
	}
	pick := "B"
	receipt, err := b.SubmitAttempt(context.Background(), "q1", model.AttemptSubmission{Answers: []*string{nil, &pick}})
	require.NoError(t, err)

	v, err := NewReviewService(b, nil).Result(context.Background(), receipt.ResultID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Correct)
	assert.Equal(t, 0, v.Incorrect)
	require.Len(t, v.Rows, 2)
	assert.False(t, v.Rows[0].Answered)
	assert.True(t, v.Rows[1].Answered)
	assert.True(t, v.Rows[1].IsCorrect)
}

func TestReview_ReportRequiresDescription(t *testing.T) {
	b := newMemoryBackend()
	pub := &recordingPublisher{}
	s := NewReviewService(b, pub)

	err := s.Report(context.Background(), "u1", ReportRequest{QuestionID: "x", QuizID: "q1", Description: "  "})
	var errs form.Errors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has("description"))
	assert.Empty(t, b.reports)

	require.NoError(t, s.Report(context.Background(), "u1", ReportRequest{QuestionID: "x", QuizID: "q1", Description: "answer B is also right"}))
	require.Len(t, b.reports, 1)
	assert.Equal(t, "u1", b.reports[0].UserID)
	assert.Equal(t, []string{broker.QuestionReportedKey}, pub.keys)
}

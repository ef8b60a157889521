package service

import (
	"testing"

	"quiz_portal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrade(t *testing.T) {
	quiz := &model.Quiz{
		UUIDBase: model.UUIDBase{ID: "q1"},
		Questions: []model.Question{
			sampleQuestion("one", "A"),
			sampleQuestion("two", "B"),
			sampleQuestion("three", "C"),
			sampleQuestion("four", "D"),
		},
	}
	a, wrong, lower := "A", "A", "c"
	result := Grade(quiz, model.AttemptSubmission{
		Answers:          []*string{&a, &wrong, &lower},
		TimeTakenMinutes: 3.5,
		AttemptKey:       "key-1",
	})

	assert.Equal(t, "q1", result.QuizID)
	assert.Equal(t, "key-1", result.AttemptKey)
	assert.Equal(t, 2, result.Correct)
	assert.Equal(t, 1, result.Incorrect)
	assert.Equal(t, 1, result.Unanswered)
	assert.InDelta(t, 50.0, result.Score, 0.001)
	assert.Equal(t, 3.5, result.TimeTakenMinutes)

	require.Len(t, result.Details, 4)
	assert.True(t, result.Details[0].IsCorrect)
	assert.False(t, result.Details[1].IsCorrect)
	assert.Equal(t, "C", *result.Details[2].Selected)
	assert.Nil(t, result.Details[3].Selected)
}

func TestGrade_EmptyQuiz(t *testing.T) {
	result := Grade(&model.Quiz{}, model.AttemptSubmission{})
	assert.Zero(t, result.Score)
	assert.Empty(t, result.Details)
}

package model

import (
	"gorm.io/datatypes"
)

// AttemptSubmission is sent to the grading collaborator.
// Answers[i] is the selected letter for question i, nil when unanswered.
type AttemptSubmission struct {
	Answers          []*string `json:"answers"`
	TimeTakenMinutes float64   `json:"timeTaken"`
	AttemptKey       string    `json:"attemptKey"`
}

type SubmitReceipt struct {
	ResultID string `json:"resultId"`
}

// QuestionOutcome 单题判分结果
type QuestionOutcome struct {
	QuestionID string  `json:"questionId"`
	Text       string  `json:"text"`
	Options    Options `json:"options"`
	Selected   *string `json:"selected"`
	Correct    string  `json:"correct"`
	IsCorrect  bool    `json:"isCorrect"`
}

// swagger:model AttemptResult
type AttemptResult struct {
	UUIDBase
	QuizID           string                              `gorm:"index;type:varchar(36)" json:"quizId"`
	UserID           string                              `gorm:"index;type:varchar(36)" json:"userId"`
	AttemptKey       string                              `gorm:"uniqueIndex;type:varchar(36)" json:"attemptKey"`
	Score            float64                             `json:"score"`
	Correct          int                                 `json:"correct"`
	Incorrect        int                                 `json:"incorrect"`
	Unanswered       int                                 `json:"unanswered"`
	TimeTakenMinutes float64                             `json:"timeTaken"`
	Details          datatypes.JSONSlice[QuestionOutcome] `gorm:"type:json" json:"perQuestionDetail"`
}

func (AttemptResult) TableName() string {
	return "attempt_results"
}

package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIndex    = errors.New("question or option index out of range")
	ErrNotInProgress   = errors.New("attempt is not in progress")
	ErrNotConfirming   = errors.New("no submission is awaiting confirmation")
	ErrSubmitInFlight  = errors.New("submission already in progress")
	ErrEmptyQuiz       = errors.New("quiz has no questions")
	ErrAttemptNotFound = errors.New("no open attempt for this quiz")
	ErrQuizUnavailable = errors.New("quiz could not be loaded")
)

// SubmitError 判分请求失败。作答回到进行中，答案与进度记录不变，可以重新提交。
type SubmitError struct {
	Err  error
	Auto bool
}

func (e *SubmitError) Error() string {
	if e.Auto {
		return fmt.Sprintf("auto-submit failed: %v", e.Err)
	}
	return fmt.Sprintf("submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Retryable 恒为 true
func (e *SubmitError) Retryable() bool {
	return true
}

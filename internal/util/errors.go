package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuizNotAvailable   = errors.New("quiz not approved or not accessible")
	ErrResultNotFound     = errors.New("result not found")
	ErrWrongPasscode      = errors.New("wrong passcode")
	ErrPasscodeFormat     = errors.New("passcode has wrong format")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrAIUnavailable      = errors.New("AI generation is not configured")
)

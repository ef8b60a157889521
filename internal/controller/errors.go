package controller

import (
	"errors"
	"net/http"
	"quiz_portal/internal/category"
	"quiz_portal/internal/composer"
	"quiz_portal/internal/form"
	"quiz_portal/internal/service"
	"quiz_portal/internal/session"
	"quiz_portal/internal/upstream"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError 把领域错误映射为 HTTP 响应，未知错误记录日志后返回 500
func respondError(ctx *gin.Context, err error) {
	var fieldErrs form.Errors
	var submitErr *session.SubmitError
	var apiErr *upstream.APIError

	switch {
	case errors.As(err, &fieldErrs):
		util.ValidationFailed(ctx, fieldErrs.Map())
	case errors.As(err, &submitErr):
		util.ErrorWithData(ctx, http.StatusBadGateway, err.Error(), gin.H{"retryable": submitErr.Retryable()})

	case errors.Is(err, util.ErrWrongPasscode), errors.Is(err, util.ErrPasscodeFormat):
		util.Gate(ctx, http.StatusForbidden, util.GatePasscode, err.Error())
	case errors.Is(err, service.ErrTooManyPasscodeAttempts):
		util.Error(ctx, http.StatusTooManyRequests, err.Error())

	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrResultNotFound),
		errors.Is(err, session.ErrAttemptNotFound),
		errors.Is(err, category.ErrNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrQuizNotAvailable), errors.Is(err, util.ErrPermissionDenied):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, util.ErrEmailRegistered), errors.Is(err, category.ErrDuplicateName):
		util.Conflict(ctx, err.Error())

	case errors.Is(err, session.ErrNotInProgress),
		errors.Is(err, session.ErrNotConfirming),
		errors.Is(err, session.ErrSubmitInFlight),
		errors.Is(err, composer.ErrBankNotLoaded),
		errors.Is(err, composer.ErrBankExhausted):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, session.ErrInvalidIndex),
		errors.Is(err, session.ErrEmptyQuiz),
		errors.Is(err, composer.ErrQuestionIndex),
		errors.Is(err, category.ErrEmptyName),
		errors.Is(err, category.ErrTooDeep),
		errors.Is(err, category.ErrInvalidPath),
		errors.Is(err, category.ErrIncomplete):
		util.BadRequest(ctx, err.Error())

	case errors.Is(err, util.ErrUnsupportedFile):
		util.Error(ctx, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, util.ErrAIUnavailable), errors.Is(err, session.ErrQuizUnavailable):
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr):
		util.BadGateway(ctx, apiErr.Message)
	default:
		util.LogInternalError(ctx, err)
	}
}

// isEmptyResult 题库为空、文档抽不出题等属于空状态，不是异常
func isEmptyResult(err error) bool {
	return errors.Is(err, composer.ErrEmptyBank) ||
		errors.Is(err, composer.ErrNoQuestionsExtracted) ||
		errors.Is(err, composer.ErrNoQuestionsGenerated)
}

func emptyResult(ctx *gin.Context, err error) {
	util.Success(ctx, gin.H{"empty": true, "message": err.Error()})
}

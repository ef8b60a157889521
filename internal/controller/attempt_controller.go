package controller

import (
	"errors"
	"net/http"
	"quiz_portal/internal/service"
	"quiz_portal/internal/session"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// StartAttemptRequest 口令可选，测验设置了口令时必填
// swagger:model StartAttemptRequest
type StartAttemptRequest struct {
	Passcode string `json:"passcode"`
}

// AnswerRequest swagger:model AnswerRequest
type AnswerRequest struct {
	QuestionIndex *int `json:"questionIndex" binding:"required"`
	OptionIndex   *int `json:"optionIndex" binding:"required"`
}

// NavigateRequest swagger:model NavigateRequest
type NavigateRequest struct {
	Action service.NavAction `json:"action" binding:"required,oneof=next previous goto"`
	Index  int               `json:"index"`
}

func currentUserID(ctx *gin.Context) string {
	if claims := util.GetUserFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// Start godoc
// @Summary 开始或恢复作答
// @Description 需要登录；测验设有口令时需提交口令。未登录返回 gate=login，口令错误返回 gate=passcode
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Param body body StartAttemptRequest false "口令"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Failure 401 {object} util.Response "需要登录"
// @Failure 403 {object} util.Response "口令错误或测验未审核"
// @Router /api/attempts/{quizId} [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	var req StartAttemptRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	v, err := c.AttemptService.Start(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("quizId"), req.Passcode)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// State godoc
// @Summary 当前作答状态
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Failure 404 {object} util.Response "没有进行中的作答"
// @Router /api/attempts/{quizId} [get]
func (c *AttemptController) State(ctx *gin.Context) {
	v, err := c.AttemptService.View(currentUserID(ctx), ctx.Param("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// Answer godoc
// @Summary 选择答案
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Param body body AnswerRequest true "题目与选项下标"
// @Success 200 {object} util.Response{data=session.Snapshot}
// @Failure 400 {object} util.Response "下标越界"
// @Failure 409 {object} util.Response "作答已结束"
// @Router /api/attempts/{quizId}/answer [put]
func (c *AttemptController) Answer(ctx *gin.Context) {
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	snap, err := c.AttemptService.Answer(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("quizId"), *req.QuestionIndex, *req.OptionIndex)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, snap)
}

// Navigate godoc
// @Summary 题目导航
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Param body body NavigateRequest true "next / previous / goto"
// @Success 200 {object} util.Response{data=session.Snapshot}
// @Router /api/attempts/{quizId}/navigate [post]
func (c *AttemptController) Navigate(ctx *gin.Context) {
	var req NavigateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	snap, err := c.AttemptService.Navigate(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("quizId"), req.Action, req.Index)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, snap)
}

// submitResponse 提交失败时附带快照，答案与记录均保留，可再次提交
func submitResponse(ctx *gin.Context, snap session.Snapshot, err error) {
	var submitErr *session.SubmitError
	if errors.As(err, &submitErr) {
		util.ErrorWithData(ctx, http.StatusBadGateway, err.Error(), gin.H{"retryable": true, "state": snap})
		return
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, snap)
}

// RequestSubmit godoc
// @Summary 请求交卷
// @Description 剩余时间大于 0 时进入确认状态；时间已到则直接交卷
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=session.Snapshot}
// @Failure 502 {object} util.Response "判分失败，可重试"
// @Router /api/attempts/{quizId}/submit [post]
func (c *AttemptController) RequestSubmit(ctx *gin.Context) {
	snap, err := c.AttemptService.RequestSubmit(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("quizId"))
	submitResponse(ctx, snap, err)
}

// ConfirmSubmit godoc
// @Summary 确认交卷
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=session.Snapshot}
// @Failure 409 {object} util.Response "没有待确认的交卷"
// @Failure 502 {object} util.Response "判分失败，可重试"
// @Router /api/attempts/{quizId}/confirm [post]
func (c *AttemptController) ConfirmSubmit(ctx *gin.Context) {
	snap, err := c.AttemptService.ConfirmSubmit(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("quizId"))
	submitResponse(ctx, snap, err)
}

// DismissSubmit godoc
// @Summary 取消交卷确认
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response{data=session.Snapshot}
// @Router /api/attempts/{quizId}/dismiss [post]
func (c *AttemptController) DismissSubmit(ctx *gin.Context) {
	snap, err := c.AttemptService.DismissSubmit(currentUserID(ctx), ctx.Param("quizId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, snap)
}

// Cancel godoc
// @Summary 放弃作答
// @Description 清除本地记录，不判分
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{quizId}/cancel [post]
func (c *AttemptController) Cancel(ctx *gin.Context) {
	if err := c.AttemptService.Cancel(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("quizId")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"state": session.Cancelled})
}

// Leave godoc
// @Summary 离开作答页
// @Description 停止计时，保留记录以便恢复
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{quizId}/leave [post]
func (c *AttemptController) Leave(ctx *gin.Context) {
	c.AttemptService.Leave(currentUserID(ctx), ctx.Param("quizId"))
	util.Success(ctx, nil)
}

package controller

import (
	"quiz_portal/internal/service"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	ReviewService *service.ReviewService
}

func NewReviewController(reviewService *service.ReviewService) *ReviewController {
	return &ReviewController{ReviewService: reviewService}
}

// GetResult godoc
// @Summary 成绩与逐题对照
// @Tags 成绩
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "成绩ID"
// @Success 200 {object} util.Response{data=service.ResultView}
// @Failure 404 {object} util.Response
// @Router /api/results/{id} [get]
func (c *ReviewController) GetResult(ctx *gin.Context) {
	view, err := c.ReviewService.Result(util.RequestContext(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// ReportQuestion godoc
// @Summary 题目纠错
// @Tags 成绩
// @Accept  json
// @Security ApiKeyAuth
// @Param body body service.ReportRequest true "纠错内容"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response "字段校验失败"
// @Router /api/reports [post]
func (c *ReviewController) ReportQuestion(ctx *gin.Context) {
	var req service.ReportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ReviewService.Report(util.RequestContext(ctx), currentUserID(ctx), req); err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, nil)
}

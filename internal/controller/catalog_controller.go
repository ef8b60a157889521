package controller

import (
	"quiz_portal/internal/model"
	"quiz_portal/internal/service"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	CatalogService *service.CatalogService
}

func NewCatalogController(catalogService *service.CatalogService) *CatalogController {
	return &CatalogController{CatalogService: catalogService}
}

func bindFilter(ctx *gin.Context, defaultLimit int) model.QuizFilter {
	var path model.CategoryPath
	_ = ctx.ShouldBindQuery(&path)
	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"), defaultLimit)
	return model.QuizFilter{
		Category: path,
		Search:   ctx.Query("search"),
		Page:     page,
		Limit:    limit,
	}
}

// ListQuizzes godoc
// @Summary 测验列表
// @Description 按分类前缀浏览已审核的测验
// @Tags 测验
// @Produce  json
// @Param region query string false "地区"
// @Param examType query string false "考试类型"
// @Param specificClass query string false "班级"
// @Param subject query string false "科目"
// @Param chapter query string false "章节"
// @Param search query string false "标题关键字"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/quizzes [get]
func (c *CatalogController) ListQuizzes(ctx *gin.Context) {
	filter := bindFilter(ctx, c.CatalogService.PageSize())
	items, total, err := c.CatalogService.List(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: items, Total: total, Page: filter.Page, Limit: filter.Limit})
}

// GetQuiz godoc
// @Summary 测验详情
// @Tags 测验
// @Produce  json
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizSummary}
// @Failure 403 {object} util.Response "未审核"
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *CatalogController) GetQuiz(ctx *gin.Context) {
	summary, err := c.CatalogService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

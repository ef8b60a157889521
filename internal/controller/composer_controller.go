package controller

import (
	"io"
	"quiz_portal/internal/composer"
	"quiz_portal/internal/model"
	"quiz_portal/internal/service"
	"quiz_portal/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ComposerController 管理端：组卷草稿、测验审核、题库
type ComposerController struct {
	ComposerService *service.ComposerService
	ReviewService   *service.ReviewService
	PageSize        func() int
}

func NewComposerController(composerService *service.ComposerService, reviewService *service.ReviewService, pageSize func() int) *ComposerController {
	return &ComposerController{ComposerService: composerService, ReviewService: reviewService, PageSize: pageSize}
}

// StatusRequest swagger:model StatusRequest
type StatusRequest struct {
	Status model.ApprovalStatus `json:"status" binding:"required,oneof=Approved WaitingForApproval Rejected"`
}

// LoadBankRequest 未指定分类时使用草稿分类
type LoadBankRequest struct {
	Category *model.CategoryPath `json:"categoryPath"`
}

// BankContributionRequest swagger:model BankContributionRequest
type BankContributionRequest struct {
	Category  model.CategoryPath `json:"categoryPath"`
	Questions []model.Question   `json:"questions"`
}

func questionIndex(ctx *gin.Context) (int, bool) {
	i, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		util.BadRequest(ctx, "invalid question index")
		return 0, false
	}
	return i, true
}

// ListQuizzes godoc
// @Summary 管理端测验列表
// @Description 不限审核状态，可按 status 过滤
// @Tags 管理
// @Produce  json
// @Security ApiKeyAuth
// @Param status query string false "Approved / WaitingForApproval / Rejected"
// @Param search query string false "标题关键字"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/quizzes [get]
func (c *ComposerController) ListQuizzes(ctx *gin.Context) {
	filter := bindFilter(ctx, c.PageSize())
	filter.Status = model.ApprovalStatus(ctx.Query("status"))
	if filter.Status != "" && !filter.Status.Valid() {
		util.BadRequest(ctx, "invalid status")
		return
	}

	page, err := c.ComposerService.ListAll(util.RequestContext(ctx), filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: page.Items, Total: page.Total, Page: filter.Page, Limit: filter.Limit})
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 管理
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id} [delete]
func (c *ComposerController) DeleteQuiz(ctx *gin.Context) {
	if err := c.ComposerService.Delete(util.RequestContext(ctx), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// SetStatus godoc
// @Summary 审核测验
// @Tags 管理
// @Accept  json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param body body StatusRequest true "审核状态"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id}/status [patch]
func (c *ComposerController) SetStatus(ctx *gin.Context) {
	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ComposerService.SetStatus(util.RequestContext(ctx), ctx.Param("id"), req.Status); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": req.Status})
}

// ListReports godoc
// @Summary 测验的题目纠错列表
// @Tags 管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuestionReport}
// @Router /api/admin/quizzes/{id}/reports [get]
func (c *ComposerController) ListReports(ctx *gin.Context) {
	reports, err := c.ReviewService.Reports(util.RequestContext(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, reports)
}

// GetDraft godoc
// @Summary 当前草稿
// @Tags 组卷
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=composer.Draft}
// @Router /api/admin/drafts/current [get]
func (c *ComposerController) GetDraft(ctx *gin.Context) {
	d, err := c.ComposerService.Draft(util.RequestContext(ctx), currentUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// ResetDraft godoc
// @Summary 丢弃草稿
// @Tags 组卷
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/admin/drafts/current [delete]
func (c *ComposerController) ResetDraft(ctx *gin.Context) {
	if err := c.ComposerService.Reset(util.RequestContext(ctx), currentUserID(ctx)); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// EditQuiz godoc
// @Summary 载入已有测验进行编辑
// @Tags 组卷
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response{data=composer.Draft}
// @Router /api/admin/quizzes/{id}/edit [post]
func (c *ComposerController) EditQuiz(ctx *gin.Context) {
	d, err := c.ComposerService.Edit(util.RequestContext(ctx), currentUserID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// UpdateMeta godoc
// @Summary 修改草稿基本信息
// @Description 只更新请求中出现的字段；修改分类会清空题库游标
// @Tags 组卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body composer.Meta true "基本信息"
// @Success 200 {object} util.Response{data=composer.Draft}
// @Router /api/admin/drafts/current/meta [patch]
func (c *ComposerController) UpdateMeta(ctx *gin.Context) {
	var meta composer.Meta
	if err := ctx.ShouldBindJSON(&meta); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	d, err := c.ComposerService.UpdateMeta(util.RequestContext(ctx), currentUserID(ctx), meta)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// AddQuestion godoc
// @Summary 手动添加题目
// @Tags 组卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body model.Question true "题目"
// @Success 200 {object} util.Response{data=composer.Draft}
// @Failure 400 {object} util.Response "字段校验失败"
// @Router /api/admin/drafts/current/questions [post]
func (c *ComposerController) AddQuestion(ctx *gin.Context) {
	var q model.Question
	if err := ctx.ShouldBindJSON(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	d, err := c.ComposerService.AddQuestion(util.RequestContext(ctx), currentUserID(ctx), q)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// UpdateQuestion godoc
// @Summary 修改草稿中的题目
// @Tags 组卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param index path int true "题目下标"
// @Param body body model.Question true "题目"
// @Success 200 {object} util.Response{data=composer.Draft}
// @Router /api/admin/drafts/current/questions/{index} [put]
func (c *ComposerController) UpdateQuestion(ctx *gin.Context) {
	i, ok := questionIndex(ctx)
	if !ok {
		return
	}
	var q model.Question
	if err := ctx.ShouldBindJSON(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	d, err := c.ComposerService.UpdateQuestion(util.RequestContext(ctx), currentUserID(ctx), i, q)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// RemoveQuestion godoc
// @Summary 删除草稿中的题目
// @Tags 组卷
// @Security ApiKeyAuth
// @Param index path int true "题目下标"
// @Success 200 {object} util.Response{data=composer.Draft}
// @Router /api/admin/drafts/current/questions/{index} [delete]
func (c *ComposerController) RemoveQuestion(ctx *gin.Context) {
	i, ok := questionIndex(ctx)
	if !ok {
		return
	}
	d, err := c.ComposerService.RemoveQuestion(util.RequestContext(ctx), currentUserID(ctx), i)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// LoadBank godoc
// @Summary 载入题库
// @Description 题库为空时返回 empty=true
// @Tags 组卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body LoadBankRequest false "分类"
// @Success 200 {object} util.Response{data=service.BankView}
// @Router /api/admin/drafts/current/bank [post]
func (c *ComposerController) LoadBank(ctx *gin.Context) {
	var req LoadBankRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	v, err := c.ComposerService.LoadBank(util.RequestContext(ctx), currentUserID(ctx), req.Category)
	if isEmptyResult(err) {
		emptyResult(ctx, err)
		return
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// BankAdd godoc
// @Summary 加入当前题库题目
// @Tags 组卷
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.BankView}
// @Router /api/admin/drafts/current/bank/add [post]
func (c *ComposerController) BankAdd(ctx *gin.Context) {
	v, err := c.ComposerService.BankAdd(util.RequestContext(ctx), currentUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// BankSkip godoc
// @Summary 跳过当前题库题目
// @Tags 组卷
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.BankView}
// @Router /api/admin/drafts/current/bank/skip [post]
func (c *ComposerController) BankSkip(ctx *gin.Context) {
	v, err := c.ComposerService.BankSkip(util.RequestContext(ctx), currentUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, v)
}

// Generate godoc
// @Summary AI 出题
// @Tags 组卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body model.GenerationSpec true "难度、语言、数量"
// @Success 200 {object} util.Response{data=object}
// @Failure 503 {object} util.Response "AI 未配置"
// @Router /api/admin/drafts/current/generate [post]
func (c *ComposerController) Generate(ctx *gin.Context) {
	var spec model.GenerationSpec
	if err := ctx.ShouldBindJSON(&spec); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !spec.Difficulty.Valid() {
		util.BadRequest(ctx, "invalid difficulty")
		return
	}
	added, err := c.ComposerService.Generate(util.RequestContext(ctx), currentUserID(ctx), spec)
	if isEmptyResult(err) {
		emptyResult(ctx, err)
		return
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"added": added})
}

// Extract godoc
// @Summary 从文档抽题
// @Description 支持 csv / json / txt / md；抽不出题目时返回 empty=true，草稿不变
// @Tags 组卷
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param file formData file true "文档"
// @Success 200 {object} util.Response{data=object}
// @Failure 415 {object} util.Response "不支持的文件类型"
// @Router /api/admin/drafts/current/extract [post]
func (c *ComposerController) Extract(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if fileHeader.Size > util.MaxDocumentSize {
		util.BadRequest(ctx, "document is too large")
		return
	}
	if !util.HasAllowedExtension(fileHeader.Filename, util.AllowedDocumentExtensions) {
		respondError(ctx, util.ErrUnsupportedFile)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, util.MaxDocumentSize))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	doc := model.Document{Filename: fileHeader.Filename, ContentType: fileHeader.Header.Get("Content-Type"), Data: data}
	added, err := c.ComposerService.Extract(util.RequestContext(ctx), currentUserID(ctx), doc)
	if isEmptyResult(err) {
		emptyResult(ctx, err)
		return
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"added": added})
}

// SaveDraft godoc
// @Summary 保存测验
// @Description 校验通过后一次性提交到后端，新测验进入待审核
// @Tags 组卷
// @Produce  json
// @Security ApiKeyAuth
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 400 {object} util.Response "字段校验失败"
// @Router /api/admin/drafts/current/save [post]
func (c *ComposerController) SaveDraft(ctx *gin.Context) {
	author := ""
	if claims := util.GetUserFromContext(ctx); claims != nil {
		author = claims.Name
	}
	quiz, err := c.ComposerService.Save(util.RequestContext(ctx), currentUserID(ctx), author)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// ContributeBank godoc
// @Summary 向题库添加题目
// @Tags 组卷
// @Accept  json
// @Security ApiKeyAuth
// @Param body body BankContributionRequest true "分类与题目"
// @Success 201 {object} util.Response
// @Router /api/admin/bank [post]
func (c *ComposerController) ContributeBank(ctx *gin.Context) {
	var req BankContributionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ComposerService.ContributeBank(util.RequestContext(ctx), req.Category, req.Questions); err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"added": len(req.Questions)})
}

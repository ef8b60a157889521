package controller

import (
	"quiz_portal/internal/model"
	"quiz_portal/internal/service"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	CategoryService *service.CategoryService
}

func NewCategoryController(categoryService *service.CategoryService) *CategoryController {
	return &CategoryController{CategoryService: categoryService}
}

// InsertCategoryRequest 在 parent 下新增子节点；parent 为空表示新增地区
type InsertCategoryRequest struct {
	Parent model.CategoryPath `json:"parent"`
	Name   string             `json:"name" binding:"required"`
}

type RenameCategoryRequest struct {
	Path model.CategoryPath `json:"path"`
	Name string             `json:"name" binding:"required"`
}

type DeleteCategoryRequest struct {
	Path model.CategoryPath `json:"path"`
}

// GetTree godoc
// @Summary 分类树
// @Tags 分类
// @Produce  json
// @Success 200 {object} util.Response{data=[]model.CategoryNode}
// @Router /api/categories [get]
func (c *CategoryController) GetTree(ctx *gin.Context) {
	tree, err := c.CategoryService.Tree(util.RequestContext(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tree)
}

// Selectors godoc
// @Summary 级联选择框
// @Description 根据已选择的路径返回五个层级的可选项
// @Tags 分类
// @Produce  json
// @Param region query string false "地区"
// @Param examType query string false "考试类型"
// @Param specificClass query string false "班级"
// @Param subject query string false "科目"
// @Param chapter query string false "章节"
// @Success 200 {object} util.Response
// @Router /api/categories/selectors [get]
func (c *CategoryController) Selectors(ctx *gin.Context) {
	var path model.CategoryPath
	if err := ctx.ShouldBindQuery(&path); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	fields, err := c.CategoryService.Selectors(util.RequestContext(ctx), path)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, fields)
}

// ReplaceTree godoc
// @Summary 整体替换分类树
// @Tags 分类
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body []model.CategoryNode true "分类树"
// @Success 200 {object} util.Response{data=[]model.CategoryNode}
// @Router /api/admin/categories [put]
func (c *CategoryController) ReplaceTree(ctx *gin.Context) {
	var tree []model.CategoryNode
	if err := ctx.ShouldBindJSON(&tree); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	saved, err := c.CategoryService.Replace(util.RequestContext(ctx), tree)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, saved)
}

// InsertNode godoc
// @Summary 新增分类节点
// @Tags 分类
// @Accept  json
// @Security ApiKeyAuth
// @Param body body InsertCategoryRequest true "父路径与名称"
// @Success 200 {object} util.Response{data=[]model.CategoryNode}
// @Failure 409 {object} util.Response "同级重名"
// @Router /api/admin/categories/nodes [post]
func (c *CategoryController) InsertNode(ctx *gin.Context) {
	var req InsertCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	tree, err := c.CategoryService.Insert(util.RequestContext(ctx), req.Parent, req.Name)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tree)
}

// RenameNode godoc
// @Summary 重命名分类节点
// @Tags 分类
// @Accept  json
// @Security ApiKeyAuth
// @Param body body RenameCategoryRequest true "路径与新名称"
// @Success 200 {object} util.Response{data=[]model.CategoryNode}
// @Router /api/admin/categories/nodes [patch]
func (c *CategoryController) RenameNode(ctx *gin.Context) {
	var req RenameCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	tree, err := c.CategoryService.Rename(util.RequestContext(ctx), req.Path, req.Name)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tree)
}

// DeleteNode godoc
// @Summary 删除分类节点（连同子节点）
// @Tags 分类
// @Accept  json
// @Security ApiKeyAuth
// @Param body body DeleteCategoryRequest true "路径"
// @Success 200 {object} util.Response{data=[]model.CategoryNode}
// @Router /api/admin/categories/nodes [delete]
func (c *CategoryController) DeleteNode(ctx *gin.Context) {
	var req DeleteCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	tree, err := c.CategoryService.Delete(util.RequestContext(ctx), req.Path)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tree)
}

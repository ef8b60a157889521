package controller

import (
	"quiz_portal/internal/service"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
)

// UploadController 题目与测验封面的图片上传
type UploadController struct {
	StorageService *service.StorageService
}

func NewUploadController(storageService *service.StorageService) *UploadController {
	return &UploadController{StorageService: storageService}
}

// UploadImage godoc
// @Summary 上传图片
// @Tags 上传
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param file formData file true "图片"
// @Success 201 {object} util.Response{data=object}
// @Failure 415 {object} util.Response "不支持的文件类型"
// @Router /api/admin/uploads/images [post]
func (c *UploadController) UploadImage(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer f.Close()

	url, err := c.StorageService.UploadImage(ctx.Request.Context(), fileHeader.Filename, f, fileHeader.Size)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"url": url})
}

// DeleteImage godoc
// @Summary 删除图片
// @Tags 上传
// @Security ApiKeyAuth
// @Param url query string true "上传时返回的地址"
// @Success 200 {object} util.Response
// @Router /api/admin/uploads/images [delete]
func (c *UploadController) DeleteImage(ctx *gin.Context) {
	url := ctx.Query("url")
	if url == "" {
		util.BadRequest(ctx, "url is required")
		return
	}
	if err := c.StorageService.Delete(ctx.Request.Context(), url); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

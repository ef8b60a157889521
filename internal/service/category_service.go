package service

import (
	"context"
	"quiz_portal/internal/category"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
)

type CategoryService struct {
	Backend CategorySource
}

func NewCategoryService(backend CategorySource) *CategoryService {
	return &CategoryService{Backend: backend}
}

func (s *CategoryService) Tree(ctx context.Context) ([]model.CategoryNode, error) {
	return s.Backend.FetchCategoryTree(ctx)
}

// Selectors 返回五级联动选择框，每一级的选项由其上层前缀决定
func (s *CategoryService) Selectors(ctx context.Context, path model.CategoryPath) ([]form.Field[string], error) {
	tree, err := s.Backend.FetchCategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	return category.Selectors(tree, path), nil
}

// Replace 整树提交
func (s *CategoryService) Replace(ctx context.Context, tree []model.CategoryNode) ([]model.CategoryNode, error) {
	clean, err := category.ValidateTree(tree)
	if err != nil {
		return nil, err
	}
	if err := s.Backend.SaveCategoryTree(ctx, clean); err != nil {
		return nil, err
	}
	return clean, nil
}

// Insert 在 parent 下新增节点并保存整树
func (s *CategoryService) Insert(ctx context.Context, parent model.CategoryPath, name string) ([]model.CategoryNode, error) {
	return s.edit(ctx, func(tree []model.CategoryNode) ([]model.CategoryNode, error) {
		return category.Insert(tree, parent, name)
	})
}

func (s *CategoryService) Rename(ctx context.Context, path model.CategoryPath, name string) ([]model.CategoryNode, error) {
	return s.edit(ctx, func(tree []model.CategoryNode) ([]model.CategoryNode, error) {
		return category.Rename(tree, path, name)
	})
}

// Delete 删除节点及其全部子孙
func (s *CategoryService) Delete(ctx context.Context, path model.CategoryPath) ([]model.CategoryNode, error) {
	return s.edit(ctx, func(tree []model.CategoryNode) ([]model.CategoryNode, error) {
		return category.Delete(tree, path)
	})
}

func (s *CategoryService) edit(ctx context.Context, fn func([]model.CategoryNode) ([]model.CategoryNode, error)) ([]model.CategoryNode, error) {
	tree, err := s.Backend.FetchCategoryTree(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(tree)
	if err != nil {
		return nil, err
	}
	if err := s.Backend.SaveCategoryTree(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

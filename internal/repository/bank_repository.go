package repository

import (
	"context"
	"quiz_portal/internal/model"

	"gorm.io/gorm"
)

// BankRepository 共享题库，按完整分类路径存放
type BankRepository struct {
	DB *gorm.DB
}

func NewBankRepository(db *gorm.DB) *BankRepository {
	return &BankRepository{DB: db}
}

func (r *BankRepository) ListByCategory(ctx context.Context, path model.CategoryPath) ([]model.BankQuestion, error) {
	var items []model.BankQuestion
	err := r.DB.WithContext(ctx).
		Where("category_region = ? AND category_exam_type = ? AND category_specific_class = ? AND category_subject = ? AND category_chapter = ?",
			path.Region, path.ExamType, path.SpecificClass, path.Subject, path.Chapter).
		Order("created_at asc").
		Find(&items).Error
	return items, err
}

func (r *BankRepository) CreateBatch(ctx context.Context, items []model.BankQuestion) error {
	if len(items) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).CreateInBatches(items, 100).Error
}

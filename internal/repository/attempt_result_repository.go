package repository

import (
	"context"
	"quiz_portal/internal/model"

	"gorm.io/gorm"
)

type AttemptResultRepository struct {
	DB *gorm.DB
}

func NewAttemptResultRepository(db *gorm.DB) *AttemptResultRepository {
	return &AttemptResultRepository{DB: db}
}

func (r *AttemptResultRepository) Create(ctx context.Context, result *model.AttemptResult) error {
	return r.DB.WithContext(ctx).Create(result).Error
}

func (r *AttemptResultRepository) FindByID(ctx context.Context, id string) (*model.AttemptResult, error) {
	var result model.AttemptResult
	err := r.DB.WithContext(ctx).First(&result, "id = ?", id).Error
	return &result, err
}

// FindByAttemptKey 幂等键查询，重复提交时返回已有成绩
func (r *AttemptResultRepository) FindByAttemptKey(ctx context.Context, key string) (*model.AttemptResult, error) {
	var result model.AttemptResult
	err := r.DB.WithContext(ctx).First(&result, "attempt_key = ?", key).Error
	return &result, err
}

func (r *AttemptResultRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.AttemptResult, error) {
	var results []model.AttemptResult
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&results).Error
	return results, err
}

package repository

import (
	"context"
	"quiz_portal/internal/model"

	"gorm.io/gorm"
)

type ReportRepository struct {
	DB *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *model.QuestionReport) error {
	return r.DB.WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) ListByQuiz(ctx context.Context, quizID string) ([]model.QuestionReport, error) {
	var reports []model.QuestionReport
	err := r.DB.WithContext(ctx).Where("quiz_id = ?", quizID).Order("submitted_at desc").Find(&reports).Error
	return reports, err
}

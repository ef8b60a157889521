package repository

import (
	"context"
	"quiz_portal/internal/model"
	"strings"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

// Create 新建测验及其题目
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) FindByID(ctx context.Context, id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Preload("Questions.Reports").
		First(&quiz, "id = ?", id).Error
	return &quiz, err
}

// List 按分类前缀、状态、标题过滤，不加载题目
func (r *QuizRepository) List(ctx context.Context, filter model.QuizFilter) ([]model.Quiz, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Quiz{})

	cols := []string{"category_region", "category_exam_type", "category_specific_class", "category_subject", "category_chapter"}
	for i, part := range filter.Category.Parts() {
		if part == "" {
			break
		}
		query = query.Where(cols[i]+" = ?", part)
	}
	if filter.Status != "" {
		query = query.Where("approval_status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where("title LIKE ?", "%"+s+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}

	var quizzes []model.Quiz
	err := query.Order("created_at desc").Find(&quizzes).Error
	return quizzes, total, err
}

// Update 覆盖测验字段并整体替换题目列表
func (r *QuizRepository) Update(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions := quiz.Questions
		quiz.Questions = nil
		if err := tx.Model(quiz).Select("*").Omit("id", "created_at", "deleted_at", "author", "author_id").Updates(quiz).Error; err != nil {
			return err
		}

		var keep []string
		for i := range questions {
			questions[i].QuizID = quiz.ID
			questions[i].Position = i
			if questions[i].ID != "" {
				keep = append(keep, questions[i].ID)
			}
		}

		del := tx.Where("quiz_id = ?", quiz.ID)
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		}
		if err := del.Delete(&model.Question{}).Error; err != nil {
			return err
		}

		for i := range questions {
			if err := tx.Save(&questions[i]).Error; err != nil {
				return err
			}
		}
		quiz.Questions = questions
		return nil
	})
}

func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Quiz{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *QuizRepository) SetStatus(ctx context.Context, id string, status model.ApprovalStatus) error {
	res := r.DB.WithContext(ctx).Model(&model.Quiz{}).Where("id = ?", id).Update("approval_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

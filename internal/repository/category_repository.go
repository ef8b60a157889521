package repository

import (
	"context"
	"quiz_portal/internal/model"

	"gorm.io/gorm"
)

// CategoryRepository 以邻接表存储分类树
type CategoryRepository struct {
	DB *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

// LoadTree 读取全部节点并组装成树，兄弟节点按 position 排序
func (r *CategoryRepository) LoadTree(ctx context.Context) ([]model.CategoryNode, error) {
	var rows []model.CategoryRecord
	if err := r.DB.WithContext(ctx).Order("level asc, position asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return BuildTree(rows), nil
}

// BuildTree assembles adjacency rows, ordered by level then position, into a tree.
func BuildTree(rows []model.CategoryRecord) []model.CategoryNode {
	children := make(map[string][]model.CategoryRecord)
	var roots []model.CategoryRecord
	for _, row := range rows {
		if row.ParentID == nil {
			roots = append(roots, row)
			continue
		}
		children[*row.ParentID] = append(children[*row.ParentID], row)
	}

	var build func(recs []model.CategoryRecord) []model.CategoryNode
	build = func(recs []model.CategoryRecord) []model.CategoryNode {
		if len(recs) == 0 {
			return nil
		}
		out := make([]model.CategoryNode, 0, len(recs))
		for _, rec := range recs {
			out = append(out, model.CategoryNode{
				ID:       rec.ID,
				Name:     rec.Name,
				Level:    model.CategoryLevel(rec.Level),
				Children: build(children[rec.ID]),
			})
		}
		return out
	}
	return build(roots)
}

// Flatten turns a tree into adjacency rows with fresh IDs.
func Flatten(tree []model.CategoryNode) []model.CategoryRecord {
	var rows []model.CategoryRecord
	var walk func(nodes []model.CategoryNode, parent *string, level int)
	walk = func(nodes []model.CategoryNode, parent *string, level int) {
		for i, n := range nodes {
			id := model.GenerateUUID()
			row := model.CategoryRecord{ParentID: parent, Level: level, Name: n.Name, Position: i}
			row.ID = id
			rows = append(rows, row)
			walk(n.Children, &id, level+1)
		}
	}
	walk(tree, nil, 0)
	return rows
}

// ReplaceTree 整树提交：删除旧节点后批量写入
func (r *CategoryRepository) ReplaceTree(ctx context.Context, tree []model.CategoryNode) error {
	rows := Flatten(tree)
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&model.CategoryRecord{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

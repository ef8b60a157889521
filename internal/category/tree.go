// Package category 地区 → 考试类型 → 班级 → 科目 → 章节 五级分类，
// 供级联选择、组卷与目录筛选使用。函数不修改传入的树。
package category

import (
	"errors"
	"fmt"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"strings"
)

var (
	ErrNotFound      = errors.New("category not found")
	ErrDuplicateName = errors.New("category name already exists under this parent")
	ErrEmptyName     = errors.New("category name is empty")
	ErrTooDeep       = errors.New("category tree is deeper than chapter level")
	ErrInvalidPath   = errors.New("category path has a gap")
	ErrIncomplete    = errors.New("category path is incomplete")
)

var levelLabels = [model.CategoryLevels]string{"Region", "Exam type", "Class", "Subject", "Chapter"}

func pathParts(path model.CategoryPath) ([]string, error) {
	parts := path.Parts()
	depth := path.Depth()
	for _, p := range parts[depth:] {
		if p != "" {
			return nil, ErrInvalidPath
		}
	}
	return parts[:depth], nil
}

func findChild(nodes []model.CategoryNode, name string) int {
	for i := range nodes {
		if nodes[i].Name == name {
			return i
		}
	}
	return -1
}

// childrenAt 沿 parts 向下，返回最后一个节点的子节点
func childrenAt(tree []model.CategoryNode, parts []string) ([]model.CategoryNode, bool) {
	nodes := tree
	for _, name := range parts {
		i := findChild(nodes, name)
		if i < 0 {
			return nil, false
		}
		nodes = nodes[i].Children
	}
	return nodes, true
}

func names(nodes []model.CategoryNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

// Options 给定上层已选路径，返回 level 层可选的名称；上层未选全或不存在时返回 nil
func Options(tree []model.CategoryNode, path model.CategoryPath, level model.CategoryLevel) []string {
	if !level.Valid() {
		return nil
	}
	prefix := path.Parts()[:level]
	for _, p := range prefix {
		if p == "" {
			return nil
		}
	}
	children, ok := childrenAt(tree, prefix)
	if !ok {
		return nil
	}
	return names(children)
}

// Selectors 生成五级级联选择框。值不在可选项中时清空；
// 未选或已失效层级之下的选择框一律为空且禁用。
func Selectors(tree []model.CategoryNode, path model.CategoryPath) []form.Field[string] {
	parts := path.Parts()
	fields := make([]form.Field[string], 0, model.CategoryLevels)
	current := model.CategoryPath{}

	for lvl := model.LevelRegion; lvl <= model.LevelChapter; lvl++ {
		opts := Options(tree, current, lvl)
		field := form.Select(lvl.String(), levelLabels[lvl], "", opts, func(s string) string { return s })
		field.Required = true
		field.Disabled = len(opts) == 0

		if v := parts[lvl]; v != "" && field.HasOption(v) {
			field = field.Set(v)
			cp := current.Parts()
			cp[lvl] = v
			current = model.PathFromParts(cp)
		} else {
			// 下游层级全部失效
			for i := int(lvl) + 1; i < model.CategoryLevels; i++ {
				parts[i] = ""
			}
		}
		fields = append(fields, field)
	}
	return fields
}

// Resolve 返回 path 最深已选层级对应的节点
func Resolve(tree []model.CategoryNode, path model.CategoryPath) (*model.CategoryNode, error) {
	parts, err := pathParts(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrNotFound
	}
	nodes := tree
	var node *model.CategoryNode
	for _, name := range parts {
		i := findChild(nodes, name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(parts, " / "))
		}
		node = &nodes[i]
		nodes = node.Children
	}
	return node, nil
}

// ValidatePath 路径须存在于树中；未要求 complete 时空路径合法
func ValidatePath(tree []model.CategoryNode, path model.CategoryPath, requireComplete bool) error {
	if requireComplete && !path.Complete() {
		if _, err := pathParts(path); err != nil {
			return err
		}
		return ErrIncomplete
	}
	if path.Depth() == 0 {
		_, err := pathParts(path)
		return err
	}
	_, err := Resolve(tree, path)
	return err
}

func Clone(tree []model.CategoryNode) []model.CategoryNode {
	if tree == nil {
		return nil
	}
	out := make([]model.CategoryNode, len(tree))
	for i, n := range tree {
		out[i] = n
		out[i].Children = Clone(n.Children)
	}
	return out
}

// update 在树的副本上对 parts 指向的子节点列表执行 fn
func update(tree []model.CategoryNode, parts []string, fn func([]model.CategoryNode) ([]model.CategoryNode, error)) ([]model.CategoryNode, error) {
	if len(parts) == 0 {
		return fn(Clone(tree))
	}
	out := Clone(tree)
	i := findChild(out, parts[0])
	if i < 0 {
		return nil, ErrNotFound
	}
	children, err := update(out[i].Children, parts[1:], fn)
	if err != nil {
		return nil, err
	}
	out[i].Children = children
	return out, nil
}

// Insert 在 parent 下追加子节点，同级名称唯一
func Insert(tree []model.CategoryNode, parent model.CategoryPath, name string) ([]model.CategoryNode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	parts, err := pathParts(parent)
	if err != nil {
		return nil, err
	}
	if len(parts) >= model.CategoryLevels {
		return nil, ErrTooDeep
	}
	return update(tree, parts, func(children []model.CategoryNode) ([]model.CategoryNode, error) {
		if findChild(children, name) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return append(children, model.CategoryNode{Name: name, Level: model.CategoryLevel(len(parts))}), nil
	})
}

// Rename 重命名节点，同级名称唯一
func Rename(tree []model.CategoryNode, path model.CategoryPath, name string) ([]model.CategoryNode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	parts, err := pathParts(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrNotFound
	}
	last := parts[len(parts)-1]
	return update(tree, parts[:len(parts)-1], func(children []model.CategoryNode) ([]model.CategoryNode, error) {
		i := findChild(children, last)
		if i < 0 {
			return nil, ErrNotFound
		}
		if last != name && findChild(children, name) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		children[i].Name = name
		return children, nil
	})
}

// Delete 删除节点及其全部子孙
func Delete(tree []model.CategoryNode, path model.CategoryPath) ([]model.CategoryNode, error) {
	parts, err := pathParts(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrNotFound
	}
	last := parts[len(parts)-1]
	return update(tree, parts[:len(parts)-1], func(children []model.CategoryNode) ([]model.CategoryNode, error) {
		i := findChild(children, last)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(children[:i], children[i+1:]...), nil
	})
}

// Count 以 n 为根的子树节点数（含 n）
func Count(n model.CategoryNode) int {
	total := 1
	for _, c := range n.Children {
		total += Count(c)
	}
	return total
}

// Walk 深度优先遍历，回调带完整路径
func Walk(tree []model.CategoryNode, fn func(path model.CategoryPath, node model.CategoryNode)) {
	var visit func(nodes []model.CategoryNode, prefix []string)
	visit = func(nodes []model.CategoryNode, prefix []string) {
		for _, n := range nodes {
			parts := append(append([]string{}, prefix...), n.Name)
			fn(model.PathFromParts(parts), n)
			visit(n.Children, parts)
		}
	}
	visit(tree, nil)
}

// ValidateTree 校验整棵提交的树：名称非空、同级唯一、深度不超过章节。
// 返回的副本中层级字段已规范化。
func ValidateTree(tree []model.CategoryNode) ([]model.CategoryNode, error) {
	out := Clone(tree)
	var check func(nodes []model.CategoryNode, level int, prefix string) error
	check = func(nodes []model.CategoryNode, level int, prefix string) error {
		if len(nodes) > 0 && level >= model.CategoryLevels {
			return fmt.Errorf("%w: %s", ErrTooDeep, prefix)
		}
		seen := make(map[string]struct{}, len(nodes))
		for i := range nodes {
			nodes[i].Name = strings.TrimSpace(nodes[i].Name)
			name := nodes[i].Name
			if name == "" {
				return fmt.Errorf("%w under %q", ErrEmptyName, prefix)
			}
			if _, dup := seen[name]; dup {
				return fmt.Errorf("%w: %s/%s", ErrDuplicateName, prefix, name)
			}
			seen[name] = struct{}{}
			nodes[i].Level = model.CategoryLevel(level)
			if err := check(nodes[i].Children, level+1, prefix+"/"+name); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(out, 0, ""); err != nil {
		return nil, err
	}
	return out, nil
}

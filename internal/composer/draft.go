// Package composer 组卷：手动录入、题库挑选、AI 出题与文档抽题的题目汇总成草稿，最后一次性保存。
package composer

import (
	"errors"
	"fmt"
	"quiz_portal/internal/category"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"strings"
	"time"
)

var (
	ErrEmptyBank            = errors.New("no questions found in the bank for this category")
	ErrBankNotLoaded        = errors.New("question bank is not loaded")
	ErrBankExhausted        = errors.New("no more questions in the bank")
	ErrNoQuestionsExtracted = errors.New("no questions extracted from the document")
	ErrNoQuestionsGenerated = errors.New("AI generation returned no questions")
	ErrQuestionIndex        = errors.New("question index out of range")
)

// BankCursor 逐题浏览题库列表
type BankCursor struct {
	Category model.CategoryPath `json:"categoryPath"`
	Items    []model.Question   `json:"items"`
	Pos      int                `json:"pos"`
	Added    int                `json:"added"`
}

func (b *BankCursor) Remaining() int {
	return len(b.Items) - b.Pos
}

// Draft 管理员正在编辑的测验
type Draft struct {
	QuizID          string             `json:"quizId,omitempty"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Thumbnail       string             `json:"thumbnail"`
	DurationMinutes int                `json:"durationMinutes"`
	Category        model.CategoryPath `json:"categoryPath"`
	Passcode        string             `json:"passcode,omitempty"`
	Questions       []model.Question   `json:"questions"`
	Bank            *BankCursor        `json:"bank,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// Meta 测验字段的部分更新，nil 字段保持不变
type Meta struct {
	Title           *string             `json:"title"`
	Description     *string             `json:"description"`
	Thumbnail       *string             `json:"thumbnail"`
	DurationMinutes *int                `json:"durationMinutes"`
	Category        *model.CategoryPath `json:"categoryPath"`
	Passcode        *string             `json:"passcode"`
}

func NewDraft() *Draft {
	return &Draft{Questions: []model.Question{}, UpdatedAt: time.Now()}
}

func FromQuiz(q *model.Quiz) *Draft {
	d := &Draft{
		QuizID:          q.ID,
		Title:           q.Title,
		Description:     q.Description,
		Thumbnail:       q.Thumbnail,
		DurationMinutes: q.DurationMinutes,
		Category:        q.Category,
		Passcode:        q.Passcode,
		Questions:       make([]model.Question, len(q.Questions)),
		UpdatedAt:       time.Now(),
	}
	copy(d.Questions, q.Questions)
	return d
}

func (d *Draft) touch() {
	d.UpdatedAt = time.Now()
}

func (d *Draft) SetMeta(m Meta) {
	if m.Title != nil {
		d.Title = strings.TrimSpace(*m.Title)
	}
	if m.Description != nil {
		d.Description = *m.Description
	}
	if m.Thumbnail != nil {
		d.Thumbnail = *m.Thumbnail
	}
	if m.DurationMinutes != nil {
		d.DurationMinutes = *m.DurationMinutes
	}
	if m.Category != nil {
		if *m.Category != d.Category {
			// 分类变化后题库游标失效
			d.Bank = nil
		}
		d.Category = *m.Category
	}
	if m.Passcode != nil {
		d.Passcode = strings.TrimSpace(*m.Passcode)
	}
	d.touch()
}

func (d *Draft) checkIndex(i int) error {
	if i < 0 || i >= len(d.Questions) {
		return fmt.Errorf("%w: %d", ErrQuestionIndex, i)
	}
	return nil
}

// AddQuestion 校验后追加手动录入的题目
func (d *Draft) AddQuestion(q model.Question) error {
	q = NormalizeQuestion(q)
	if errs := ValidateQuestion(q, ""); !errs.Empty() {
		return errs
	}
	q.ID = ""
	d.Questions = append(d.Questions, q)
	d.touch()
	return nil
}

// UpdateQuestion 替换第 i 题，保留原 ID
func (d *Draft) UpdateQuestion(i int, q model.Question) error {
	if err := d.checkIndex(i); err != nil {
		return err
	}
	q = NormalizeQuestion(q)
	if errs := ValidateQuestion(q, ""); !errs.Empty() {
		return errs
	}
	q.ID = d.Questions[i].ID
	d.Questions[i] = q
	d.touch()
	return nil
}

func (d *Draft) RemoveQuestion(i int) error {
	if err := d.checkIndex(i); err != nil {
		return err
	}
	d.Questions = append(d.Questions[:i], d.Questions[i+1:]...)
	d.touch()
	return nil
}

// LoadBank 用新拉取的列表替换题库游标；列表为空时清空游标并返回 ErrEmptyBank
func (d *Draft) LoadBank(path model.CategoryPath, items []model.Question) error {
	if len(items) == 0 {
		d.Bank = nil
		return ErrEmptyBank
	}
	d.Bank = &BankCursor{Category: path, Items: items}
	d.touch()
	return nil
}

func (d *Draft) BankCurrent() (*model.Question, error) {
	if d.Bank == nil {
		return nil, ErrBankNotLoaded
	}
	if d.Bank.Remaining() <= 0 {
		return nil, ErrBankExhausted
	}
	q := d.Bank.Items[d.Bank.Pos]
	return &q, nil
}

// BankAdd 把游标处的题目加入草稿并前进
func (d *Draft) BankAdd() (*model.Question, error) {
	cur, err := d.BankCurrent()
	if err != nil {
		return nil, err
	}
	q := NormalizeQuestion(*cur)
	q.ID = ""
	q.QuizID = ""
	d.Questions = append(d.Questions, q)
	d.Bank.Pos++
	d.Bank.Added++
	d.touch()
	return &q, nil
}

func (d *Draft) BankSkip() error {
	if _, err := d.BankCurrent(); err != nil {
		return err
	}
	d.Bank.Pos++
	d.touch()
	return nil
}

func (d *Draft) appendAll(qs []model.Question) int {
	for _, q := range qs {
		q = NormalizeQuestion(q)
		q.ID = ""
		q.QuizID = ""
		d.Questions = append(d.Questions, q)
	}
	d.touch()
	return len(qs)
}

// AddGenerated 追加 AI 生成的题目，保存时才校验，作者可先修改
func (d *Draft) AddGenerated(qs []model.Question) (int, error) {
	if len(qs) == 0 {
		return 0, ErrNoQuestionsGenerated
	}
	return d.appendAll(qs), nil
}

// AddExtracted 追加文档抽取的题目；抽取为空时不改动并返回 ErrNoQuestionsExtracted
func (d *Draft) AddExtracted(qs []model.Question) (int, error) {
	if len(qs) == 0 {
		return 0, ErrNoQuestionsExtracted
	}
	return d.appendAll(qs), nil
}

// Validate 组卷表单的必填校验；tree 非 nil 时分类路径必须存在于树中
func (d *Draft) Validate(passcodeLength int, tree []model.CategoryNode) form.Errors {
	var errs form.Errors

	errs.Require("title", "Title", d.Title)
	if d.DurationMinutes <= 0 {
		errs.Add("durationMinutes", "Duration must be a positive number of minutes")
	}

	if !d.Category.Complete() {
		errs.Add("categoryPath", "Category path must be selected down to the chapter")
	} else if tree != nil {
		if err := category.ValidatePath(tree, d.Category, true); err != nil {
			errs.Add("categoryPath", err.Error())
		}
	}

	if d.Passcode != "" && !ValidPasscode(d.Passcode, passcodeLength) {
		errs.Add("passcode", fmt.Sprintf("Passcode must be exactly %d digits", passcodeLength))
	}

	if len(d.Questions) == 0 {
		errs.Add("questions", "Add at least one question")
	}
	for i, q := range d.Questions {
		errs.Merge(ValidateQuestion(q, fmt.Sprintf("questions[%d]", i)))
	}
	return errs
}

// Build 生成提交给后端的测验
func (d *Draft) Build() *model.Quiz {
	quiz := &model.Quiz{
		Title:           d.Title,
		Description:     d.Description,
		Thumbnail:       d.Thumbnail,
		DurationMinutes: d.DurationMinutes,
		Category:        d.Category,
		Passcode:        d.Passcode,
		Questions:       make([]model.Question, len(d.Questions)),
	}
	quiz.ID = d.QuizID
	for i, q := range d.Questions {
		q.Position = i
		q.Reports = nil
		quiz.Questions[i] = q
	}
	return quiz
}

// ValidPasscode 是否恰好为 length 位数字
func ValidPasscode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

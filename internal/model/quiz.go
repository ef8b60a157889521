package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type ApprovalStatus string

const (
	Approved           ApprovalStatus = "Approved"
	WaitingForApproval ApprovalStatus = "WaitingForApproval"
	Rejected           ApprovalStatus = "Rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case Approved, WaitingForApproval, Rejected:
		return true
	}
	return false
}

type Difficulty string

const (
	Easy    Difficulty = "Easy"
	Average Difficulty = "Average"
	Hard    Difficulty = "Hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Average, Hard:
		return true
	}
	return false
}

// OptionLabels 选项标签，顺序即选项下标
var OptionLabels = []string{"A", "B", "C", "D"}

// LetterToIndex 将选项字母转换为下标
func LetterToIndex(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	for i, l := range OptionLabels {
		if l == letter {
			return i, true
		}
	}
	return -1, false
}

// IndexToLetter 将选项下标转换为字母
func IndexToLetter(idx int) (string, bool) {
	if idx < 0 || idx >= len(OptionLabels) {
		return "", false
	}
	return OptionLabels[idx], true
}

// Options maps an option label (A-D) to its text.
type Options map[string]string

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "{}", nil
	}
	b, err := json.Marshal(o)
	return string(b), err
}

func (o *Options) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*o = nil
		return nil
	default:
		return errors.New("options: unsupported scan type")
	}
	return json.Unmarshal(raw, o)
}

// CategoryPath is the selection Region → ExamType → SpecificClass → Subject → Chapter.
// An empty component means "not selected"; only a prefix may be set.
type CategoryPath struct {
	Region        string `gorm:"size:100;index" json:"region" form:"region"`
	ExamType      string `gorm:"size:100" json:"examType" form:"examType"`
	SpecificClass string `gorm:"size:100" json:"specificClass" form:"specificClass"`
	Subject       string `gorm:"size:100" json:"subject" form:"subject"`
	Chapter       string `gorm:"size:100" json:"chapter" form:"chapter"`
}

// Parts 按层级顺序返回路径各段
func (p CategoryPath) Parts() []string {
	return []string{p.Region, p.ExamType, p.SpecificClass, p.Subject, p.Chapter}
}

// Depth 返回从根开始连续已选择的层数
func (p CategoryPath) Depth() int {
	n := 0
	for _, part := range p.Parts() {
		if part == "" {
			break
		}
		n++
	}
	return n
}

func (p CategoryPath) Complete() bool {
	return p.Depth() == CategoryLevels
}

// HasPrefix reports whether every component set in prefix matches p.
func (p CategoryPath) HasPrefix(prefix CategoryPath) bool {
	mine := p.Parts()
	for i, part := range prefix.Parts() {
		if part == "" {
			break
		}
		if mine[i] != part {
			return false
		}
	}
	return true
}

// Truncate 保留前 depth 层
func (p CategoryPath) Truncate(depth int) CategoryPath {
	parts := p.Parts()
	for i := depth; i < len(parts); i++ {
		parts[i] = ""
	}
	return PathFromParts(parts)
}

func PathFromParts(parts []string) CategoryPath {
	var p CategoryPath
	fields := []*string{&p.Region, &p.ExamType, &p.SpecificClass, &p.Subject, &p.Chapter}
	for i := 0; i < len(parts) && i < len(fields); i++ {
		*fields[i] = parts[i]
	}
	return p
}

// QuestionBody 题目内容，题库与试卷共用
type QuestionBody struct {
	Text          string                     `gorm:"type:text;not null" json:"text"`
	Options       Options                    `gorm:"type:json" json:"options"`
	CorrectAnswer string                     `gorm:"size:1" json:"correctAnswer,omitempty"`
	Difficulty    Difficulty                 `gorm:"size:20" json:"difficulty"`
	Tags          datatypes.JSONSlice[string] `gorm:"type:json" json:"tags,omitempty"`
	Image         string                     `gorm:"size:255" json:"image,omitempty"`
	Note          string                     `gorm:"type:text" json:"note,omitempty"`
}

// swagger:model Question
type Question struct {
	UUIDBase
	QuizID   string `gorm:"index;type:varchar(36)" json:"quizId,omitempty"`
	Position int    `gorm:"default:0" json:"position"`
	QuestionBody
	Reports []QuestionReport `gorm:"foreignKey:QuestionID" json:"reports,omitempty"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// swagger:model BankQuestion
type BankQuestion struct {
	UUIDBase
	Category CategoryPath `gorm:"embedded;embeddedPrefix:category_" json:"categoryPath"`
	QuestionBody
}

func (BankQuestion) TableName() string {
	return "bank_questions"
}

// AsQuestion 转换为可加入试卷的题目（不带 ID）
func (b BankQuestion) AsQuestion() Question {
	return Question{QuestionBody: b.QuestionBody}
}

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	Title           string         `gorm:"size:255;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	Thumbnail       string         `gorm:"size:255" json:"thumbnail"`
	DurationMinutes int            `gorm:"not null" json:"durationMinutes"`
	Author          string         `gorm:"size:100" json:"author"`
	AuthorID        string         `gorm:"index;type:varchar(36)" json:"authorId,omitempty"`
	Category        CategoryPath   `gorm:"embedded;embeddedPrefix:category_" json:"categoryPath"`
	ApprovalStatus  ApprovalStatus `gorm:"size:30;index;default:'WaitingForApproval'" json:"approvalStatus"`
	Passcode        string         `gorm:"size:32" json:"passcode,omitempty"`
	Questions       []Question     `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

func (q *Quiz) HasPasscode() bool {
	return q.Passcode != ""
}

// QuizFilter 测验列表查询条件；Status 为空表示不限
type QuizFilter struct {
	Category CategoryPath
	Status   ApprovalStatus
	Search   string
	Page     int
	Limit    int
}

type QuizPage struct {
	Items []Quiz `json:"items"`
	Total int64  `json:"total"`
}

// GenerationSpec AI 出题参数
type GenerationSpec struct {
	Difficulty Difficulty   `json:"difficulty" binding:"required"`
	Language   string       `json:"language" binding:"required"`
	Count      int          `json:"count" binding:"required,min=1"`
	Category   CategoryPath `json:"categoryPath"`
}

// Document 上传的待抽取题目的文档
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// QuestionReport is a user-submitted problem report on a question.
// swagger:model QuestionReport
type QuestionReport struct {
	UUIDBase
	QuestionID  string    `gorm:"index;type:varchar(36)" json:"questionId"`
	QuizID      string    `gorm:"index;type:varchar(36)" json:"quizId"`
	UserID      string    `gorm:"index;type:varchar(36)" json:"userId,omitempty"`
	Description string    `gorm:"type:text;not null" json:"description"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (QuestionReport) TableName() string {
	return "question_reports"
}

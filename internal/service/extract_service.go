package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"quiz_portal/internal/composer"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

// ExtractService 从上传的文档中识别选择题。
// 支持 csv / json / txt / md，解析不出题目时交给 AI 兜底。
type ExtractService struct {
	AI *AIService
}

func NewExtractService(ai *AIService) *ExtractService {
	return &ExtractService{AI: ai}
}

// Extract returns the valid questions found in doc. An empty result is not an error.
func (s *ExtractService) Extract(ctx context.Context, doc model.Document) ([]model.Question, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if !util.HasAllowedExtension(doc.Filename, util.AllowedDocumentExtensions) {
		return nil, fmt.Errorf("%w: %s", util.ErrUnsupportedFile, ext)
	}

	var (
		raw []model.Question
		err error
	)
	switch ext {
	case ".csv":
		raw, err = parseQuestionCSV(doc.Data)
	case ".json":
		raw, err = parseQuestionJSON(doc.Data)
	default:
		raw = parseQuestionText(string(doc.Data))
	}
	if err != nil {
		return nil, err
	}

	questions := keepValid(raw)
	if len(questions) > 0 || ext == ".json" || s.AI == nil || !s.AI.IsAvailable() {
		return questions, nil
	}

	logger.Log.Info("document parser found no questions, asking AI", zap.String("file", doc.Filename))
	aiQuestions, err := s.AI.ExtractQuestions(ctx, string(doc.Data))
	if err != nil {
		return nil, err
	}
	return aiQuestions, nil
}

func keepValid(raw []model.Question) []model.Question {
	out := make([]model.Question, 0, len(raw))
	for _, q := range raw {
		q = composer.NormalizeQuestion(q)
		if q.Difficulty == "" {
			q.Difficulty = model.Average
		}
		if composer.ValidateQuestion(q, "").Empty() {
			out = append(out, q)
		}
	}
	return out
}

// parseQuestionCSV 需要表头，列按名称匹配：
// text, a, b, c, d, answer, difficulty, note, tags（tags 以分号分隔）
func parseQuestionCSV(data []byte) ([]model.Question, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if h == "question" {
			h = "text"
		}
		if h == "correct" || h == "correctanswer" {
			h = "answer"
		}
		cols[h] = i
	}
	if _, ok := cols["text"]; !ok {
		return nil, fmt.Errorf("invalid CSV: missing text column")
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []model.Question
	for _, row := range records[1:] {
		text := get(row, "text")
		if text == "" {
			continue
		}
		opts := make(model.Options, len(model.OptionLabels))
		for _, label := range model.OptionLabels {
			opts[label] = get(row, strings.ToLower(label))
		}
		var tags []string
		if t := get(row, "tags"); t != "" {
			tags = strings.Split(t, ";")
		}
		out = append(out, model.Question{QuestionBody: model.QuestionBody{
			Text:          text,
			Options:       opts,
			CorrectAnswer: get(row, "answer"),
			Difficulty:    normalizeDifficulty(get(row, "difficulty")),
			Note:          get(row, "note"),
			Tags:          tags,
		}})
	}
	return out, nil
}

// parseQuestionJSON 接受题目数组或 {"questions": [...]}
func parseQuestionJSON(data []byte) ([]model.Question, error) {
	trimmed := bytes.TrimSpace(data)
	var out []model.Question
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return out, nil
	}
	var wrapped struct {
		Questions []model.Question `json:"questions"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return wrapped.Questions, nil
}

// parseQuestionText 识别以空行分隔的题块：
//
//	1. 题干
//	A. 选项
//	B. 选项
//	C. 选项
//	D. 选项
//	Answer: B
func parseQuestionText(text string) []model.Question {
	var (
		out []model.Question
		cur *model.Question
	)
	flush := func() {
		if cur != nil && cur.Text != "" {
			out = append(out, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimLeft(line, "#*- ")
		if line == "" {
			flush()
			continue
		}

		if label, rest, ok := optionLine(line); ok && cur != nil {
			cur.Options[label] = rest
			continue
		}
		if ans, ok := answerLine(line); ok && cur != nil {
			cur.CorrectAnswer = ans
			continue
		}
		if cur != nil && len(cur.Options) == 0 {
			// 题干跨行
			cur.Text += " " + line
			continue
		}
		flush()
		cur = &model.Question{QuestionBody: model.QuestionBody{
			Text:    stripNumbering(line),
			Options: make(model.Options, len(model.OptionLabels)),
		}}
	}
	flush()
	return out
}

func optionLine(line string) (string, string, bool) {
	if len(line) < 2 {
		return "", "", false
	}
	label := strings.ToUpper(line[:1])
	if _, ok := model.LetterToIndex(label); !ok {
		return "", "", false
	}
	rest := line[1:]
	for _, sep := range []string{".", ")", ":", "、", "．", "："} {
		if strings.HasPrefix(rest, sep) {
			return label, strings.TrimSpace(rest[len(sep):]), true
		}
	}
	return "", "", false
}

func answerLine(line string) (string, bool) {
	lower := strings.ToLower(line)
	for _, prefix := range []string{"answer:", "answer：", "答案:", "答案：", "correct:"} {
		if strings.HasPrefix(lower, prefix) {
			ans := strings.TrimSpace(line[len(prefix):])
			if ans == "" {
				return "", false
			}
			return strings.ToUpper(ans[:1]), true
		}
	}
	return "", false
}

func stripNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

func normalizeDifficulty(s string) model.Difficulty {
	for _, d := range []model.Difficulty{model.Easy, model.Average, model.Hard} {
		if strings.EqualFold(s, string(d)) {
			return d
		}
	}
	return model.Average
}

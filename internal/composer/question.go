package composer

import (
	"fmt"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"strings"
)

var difficulties = []model.Difficulty{model.Easy, model.Average, model.Hard}

// NormalizeQuestion 去除文本首尾空白，答案字母转大写，去掉重复或空白标签
func NormalizeQuestion(q model.Question) model.Question {
	q.Text = strings.TrimSpace(q.Text)
	q.Note = strings.TrimSpace(q.Note)
	q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))

	if q.Options != nil {
		opts := make(model.Options, len(q.Options))
		for k, v := range q.Options {
			opts[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		q.Options = opts
	}

	if len(q.Tags) > 0 {
		seen := make(map[string]struct{}, len(q.Tags))
		tags := make([]string, 0, len(q.Tags))
		for _, t := range q.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
		q.Tags = tags
	}
	return q
}

// ValidateQuestion 校验单题：题干、A-D 四个非空选项、答案取自选项字母、难度合法。
// 字段名带 prefix 前缀，如 "questions[2]"。
func ValidateQuestion(q model.Question, prefix string) form.Errors {
	var errs form.Errors
	name := func(f string) string {
		if prefix == "" {
			return f
		}
		return prefix + "." + f
	}

	errs.Require(name("text"), "Question text", q.Text)

	for _, label := range model.OptionLabels {
		errs.Require(name("options."+label), "Option "+label, q.Options[label])
	}
	for k := range q.Options {
		if _, ok := model.LetterToIndex(k); !ok {
			errs.Add(name("options."+k), fmt.Sprintf("Option label %q is not one of A-D", k))
		}
	}

	answer := form.Select(name("correctAnswer"), "Correct answer", q.CorrectAnswer, model.OptionLabels, func(s string) string { return s })
	answer.Required = true
	answer.Validate(&errs)

	difficulty := form.Select(name("difficulty"), "Difficulty", q.Difficulty, difficulties, func(d model.Difficulty) string { return string(d) })
	difficulty.Required = true
	difficulty.Validate(&errs)

	return errs
}

package composer

import (
	"errors"
	"testing"

	"quiz_portal/internal/form"
	"quiz_portal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion(text string) model.Question {
	return model.Question{QuestionBody: model.QuestionBody{
		Text:          text,
		Options:       model.Options{"A": "1", "B": "2", "C": "3", "D": "4"},
		CorrectAnswer: "b",
		Difficulty:    model.Easy,
		Tags:          []string{"math", " math ", ""},
	}}
}

func completeDraft() *Draft {
	d := NewDraft()
	d.Title = "Optics basics"
	d.DurationMinutes = 10
	d.Category = model.CategoryPath{Region: "Asia", ExamType: "Board", SpecificClass: "Class 10", Subject: "Physics", Chapter: "Optics"}
	return d
}

func TestAddQuestion_NormalizesAndValidates(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.AddQuestion(validQuestion("  1+1?  ")))
	require.Len(t, d.Questions, 1)
	assert.Equal(t, "1+1?", d.Questions[0].Text)
	assert.Equal(t, "B", d.Questions[0].CorrectAnswer)
	assert.Equal(t, []string{"math"}, []string(d.Questions[0].Tags))

	bad := validQuestion("x")
	bad.Options["C"] = ""
	bad.CorrectAnswer = "E"
	err := d.AddQuestion(bad)
	var errs form.Errors
	require.True(t, errors.As(err, &errs))
	assert.True(t, errs.Has("options.C"))
	assert.True(t, errs.Has("correctAnswer"))
	assert.Len(t, d.Questions, 1)
}

func TestUpdateAndRemoveQuestion(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.AddQuestion(validQuestion("q1")))
	require.NoError(t, d.AddQuestion(validQuestion("q2")))
	d.Questions[1].ID = "kept-id"

	require.NoError(t, d.UpdateQuestion(1, validQuestion("q2 edited")))
	assert.Equal(t, "q2 edited", d.Questions[1].Text)
	assert.Equal(t, "kept-id", d.Questions[1].ID)

	assert.ErrorIs(t, d.UpdateQuestion(5, validQuestion("x")), ErrQuestionIndex)
	assert.ErrorIs(t, d.RemoveQuestion(-1), ErrQuestionIndex)

	require.NoError(t, d.RemoveQuestion(0))
	require.Len(t, d.Questions, 1)
	assert.Equal(t, "q2 edited", d.Questions[0].Text)
}

func TestBankCursor(t *testing.T) {
	d := completeDraft()

	_, err := d.BankCurrent()
	assert.ErrorIs(t, err, ErrBankNotLoaded)
	assert.ErrorIs(t, d.LoadBank(d.Category, nil), ErrEmptyBank)
	assert.Nil(t, d.Bank)

	bank := []model.Question{validQuestion("b1"), validQuestion("b2"), validQuestion("b3")}
	bank[0].ID = "bank-1"
	require.NoError(t, d.LoadBank(d.Category, bank))

	added, err := d.BankAdd()
	require.NoError(t, err)
	assert.Equal(t, "b1", added.Text)
	assert.Empty(t, d.Questions[0].ID)

	require.NoError(t, d.BankSkip())
	cur, err := d.BankCurrent()
	require.NoError(t, err)
	assert.Equal(t, "b3", cur.Text)

	_, err = d.BankAdd()
	require.NoError(t, err)
	_, err = d.BankAdd()
	assert.ErrorIs(t, err, ErrBankExhausted)
	assert.ErrorIs(t, d.BankSkip(), ErrBankExhausted)

	assert.Len(t, d.Questions, 2)
	assert.Equal(t, 2, d.Bank.Added)
}

func TestSetMeta_CategoryChangeResetsBank(t *testing.T) {
	d := completeDraft()
	require.NoError(t, d.LoadBank(d.Category, []model.Question{validQuestion("b1")}))

	title := "  New title "
	d.SetMeta(Meta{Title: &title})
	assert.Equal(t, "New title", d.Title)
	assert.NotNil(t, d.Bank)

	other := d.Category
	other.Chapter = "Motion"
	d.SetMeta(Meta{Category: &other})
	assert.Nil(t, d.Bank)
	assert.Equal(t, "Motion", d.Category.Chapter)
}

func TestAddExtracted_EmptyLeavesListUnchanged(t *testing.T) {
	d := NewDraft()
	require.NoError(t, d.AddQuestion(validQuestion("q1")))

	n, err := d.AddExtracted(nil)
	assert.ErrorIs(t, err, ErrNoQuestionsExtracted)
	assert.Zero(t, n)
	assert.Len(t, d.Questions, 1)

	n, err = d.AddExtracted([]model.Question{validQuestion("e1"), validQuestion("e2")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, d.Questions, 3)

	_, err = d.AddGenerated([]model.Question{})
	assert.ErrorIs(t, err, ErrNoQuestionsGenerated)
}

func TestValidate(t *testing.T) {
	d := NewDraft()
	errs := d.Validate(5, nil)
	assert.True(t, errs.Has("title"))
	assert.True(t, errs.Has("durationMinutes"))
	assert.True(t, errs.Has("categoryPath"))
	assert.True(t, errs.Has("questions"))

	d = completeDraft()
	require.NoError(t, d.AddQuestion(validQuestion("q1")))
	assert.True(t, d.Validate(5, nil).Empty())

	d.Passcode = "1234"
	assert.True(t, d.Validate(5, nil).Has("passcode"))
	d.Passcode = "12a45"
	assert.True(t, d.Validate(5, nil).Has("passcode"))
	d.Passcode = "13579"
	assert.True(t, d.Validate(5, nil).Empty())

	tree := []model.CategoryNode{{Name: "Europe"}}
	assert.True(t, d.Validate(5, tree).Has("categoryPath"))

	// an extracted question with a missing answer is caught at save time
	broken := validQuestion("broken")
	broken.CorrectAnswer = ""
	_, err := d.AddExtracted([]model.Question{broken})
	require.NoError(t, err)
	assert.True(t, d.Validate(5, nil).Has("questions[1].correctAnswer"))
}

func TestBuild_AssignsPositions(t *testing.T) {
	d := completeDraft()
	d.QuizID = "quiz-1"
	require.NoError(t, d.AddQuestion(validQuestion("q1")))
	require.NoError(t, d.AddQuestion(validQuestion("q2")))

	quiz := d.Build()
	assert.Equal(t, "quiz-1", quiz.ID)
	assert.Equal(t, "Optics basics", quiz.Title)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, 0, quiz.Questions[0].Position)
	assert.Equal(t, 1, quiz.Questions[1].Position)

	again := FromQuiz(quiz)
	assert.Equal(t, d.Questions[1].Text, again.Questions[1].Text)
	assert.Equal(t, d.Category, again.Category)
}

func TestValidPasscode(t *testing.T) {
	assert.True(t, ValidPasscode("00000", 5))
	assert.False(t, ValidPasscode("0000", 5))
	assert.False(t, ValidPasscode("０0000", 5))
}

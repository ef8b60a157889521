package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"quiz_portal/internal/composer"
	"quiz_portal/internal/form"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/broker"
	"quiz_portal/pkg/cache"
	"quiz_portal/pkg/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func composerFixture() (*memoryBackend, *recordingPublisher, *ComposerService) {
	b := newMemoryBackend()
	b.tree = chapterTree()
	pub := &recordingPublisher{}
	catalog := NewCatalogService(b, security.NewKeyedLimiter(10, time.Minute), 5, 20)
	return b, pub, NewComposerService(b, cache.NewMemoryKV(), pub, catalog)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int        { return &i }

func TestComposer_SaveNewQuiz(t *testing.T) {
	b, pub, s := composerFixture()
	ctx := context.Background()
	path := chapterPath()

	_, err := s.UpdateMeta(ctx, "admin-1", composer.Meta{
		Title:           strPtr("Algebra basics"),
		DurationMinutes: intPtr(15),
		Category:        &path,
		Passcode:        strPtr("24680"),
	})
	require.NoError(t, err)
	_, err = s.AddQuestion(ctx, "admin-1", sampleQuestion("1 + 1 = ?", "b"))
	require.NoError(t, err)

	// 草稿保存在 KV 中
	d, err := s.Draft(ctx, "admin-1")
	require.NoError(t, err)
	require.Len(t, d.Questions, 1)
	assert.Equal(t, "B", d.Questions[0].CorrectAnswer)

	saved, err := s.Save(ctx, "admin-1", "Admin")
	require.NoError(t, err)
	assert.Equal(t, model.WaitingForApproval, saved.ApprovalStatus)
	assert.Equal(t, "admin-1", saved.AuthorID)
	assert.Len(t, b.quizzes, 1)
	assert.Equal(t, []string{broker.QuizSavedKey}, pub.keys)

	fresh, err := s.Draft(ctx, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Questions)
	assert.Empty(t, fresh.Title)
}

func TestComposer_SaveRejectsInvalidDraft(t *testing.T) {
	b, pub, s := composerFixture()
	ctx := context.Background()

	_, err := s.UpdateMeta(ctx, "admin-1", composer.Meta{Passcode: strPtr("12")})
	require.NoError(t, err)

	_, err = s.Save(ctx, "admin-1", "Admin")
	require.Error(t, err)
	var errs form.Errors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has("title"))
	assert.True(t, errs.Has("durationMinutes"))
	assert.True(t, errs.Has("categoryPath"))
	assert.True(t, errs.Has("passcode"))
	assert.True(t, errs.Has("questions"))
	assert.Empty(t, b.quizzes)
	assert.Empty(t, pub.keys)
}

func TestComposer_EmptyExtractionKeepsQuestions(t *testing.T) {
	b, _, s := composerFixture()
	ctx := context.Background()

	_, err := s.AddQuestion(ctx, "admin-1", sampleQuestion("kept", "A"))
	require.NoError(t, err)

	b.extracted = nil
	added, err := s.Extract(ctx, "admin-1", model.Document{Filename: "empty.txt"})
	assert.ErrorIs(t, err, composer.ErrNoQuestionsExtracted)
	assert.Zero(t, added)

	d, err := s.Draft(ctx, "admin-1")
	require.NoError(t, err)
	require.Len(t, d.Questions, 1)
	assert.Equal(t, "kept", d.Questions[0].Text)

	b.extracted = []model.Question{sampleQuestion("from doc", "C")}
	added, err = s.Extract(ctx, "admin-1", model.Document{Filename: "doc.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestComposer_BankCursor(t *testing.T) {
	b, _, s := composerFixture()
	ctx := context.Background()
	path := chapterPath()

	_, err := s.LoadBank(ctx, "admin-1", &path)
	assert.ErrorIs(t, err, composer.ErrEmptyBank)

	b.bank = []model.Question{sampleQuestion("first", "A"), sampleQuestion("second", "B")}
	v, err := s.LoadBank(ctx, "admin-1", &path)
	require.NoError(t, err)
	require.NotNil(t, v.Current)
	assert.Equal(t, "first", v.Current.Text)
	assert.Equal(t, 2, v.Remaining)

	v, err = s.BankSkip(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "second", v.Current.Text)

	v, err = s.BankAdd(ctx, "admin-1")
	require.NoError(t, err)
	assert.Nil(t, v.Current)
	assert.Equal(t, 1, v.Added)

	d, err := s.Draft(ctx, "admin-1")
	require.NoError(t, err)
	require.Len(t, d.Questions, 1)
	assert.Equal(t, "second", d.Questions[0].Text)
}

func TestComposer_EditExistingQuiz(t *testing.T) {
	b, _, s := composerFixture()
	ctx := context.Background()
	b.quizzes["q1"] = &model.Quiz{
		UUIDBase:        model.UUIDBase{ID: "q1"},
		Title:           "Old title",
		DurationMinutes: 5,
		Category:        chapterPath(),
		ApprovalStatus:  model.Approved,
		Questions:       []model.Question{sampleQuestion("q", "A")},
	}

	d, err := s.Edit(ctx, "admin-1", "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", d.QuizID)

	_, err = s.UpdateMeta(ctx, "admin-1", composer.Meta{Title: strPtr("New title")})
	require.NoError(t, err)
	saved, err := s.Save(ctx, "admin-1", "Admin")
	require.NoError(t, err)
	assert.Equal(t, "q1", saved.ID)
	assert.Equal(t, "New title", b.quizzes["q1"].Title)
}

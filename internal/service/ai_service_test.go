package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIService_GenerateQuestions(t *testing.T) {
	var gotPrompt, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		gotPrompt = req.Messages[1].Content

		content := `Here you go: {"questions":[
			{"text":"2 * 3 = ?","options":{"A":"5","B":"6","C":"7","D":"8"},"correctAnswer":"b","note":"multiplication"},
			{"text":"missing options","options":{"A":"x"},"correctAnswer":"A"},
			{"text":"10 / 2 = ?","options":{"A":"2","B":"4","C":"5","D":"8"},"correctAnswer":"C"}
		]}`
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	s := NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "secret", Model: "m", Timeout: time.Second, MaxQuestions: 5})
	qs, err := s.GenerateQuestions(context.Background(), model.GenerationSpec{
		Difficulty: model.Hard,
		Language:   "English",
		Count:      2,
		Category:   model.CategoryPath{Region: "North", ExamType: "Entrance"},
	})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "B", qs[0].CorrectAnswer)
	assert.Equal(t, model.Hard, qs[0].Difficulty)
	assert.Equal(t, "10 / 2 = ?", qs[1].Text)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.True(t, strings.Contains(gotPrompt, "North / Entrance"))
	assert.True(t, strings.Contains(gotPrompt, "hard"))
}

func TestAIService_NotConfigured(t *testing.T) {
	s := NewAIService(config.AIConfig{})
	assert.False(t, s.IsAvailable())
	_, err := s.GenerateQuestions(context.Background(), model.GenerationSpec{Count: 1})
	assert.ErrorIs(t, err, util.ErrAIUnavailable)
}

func TestAIService_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second})
	_, err := s.Chat(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCleanJSONContent(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONContent("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONContent("sure! {\"a\":1} hope this helps"))
}

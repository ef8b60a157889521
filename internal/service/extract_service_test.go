package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_CSV(t *testing.T) {
	data := "text,A,B,C,D,answer,difficulty,tags\n" +
		"Capital of France?,Berlin,Paris,Rome,Madrid,b,Easy,geo;europe\n" +
		"Broken row,only,two,,,A,Hard,\n"

	qs, err := NewExtractService(nil).Extract(context.Background(), model.Document{Filename: "bank.csv", Data: []byte(data)})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Capital of France?", qs[0].Text)
	assert.Equal(t, "B", qs[0].CorrectAnswer)
	assert.Equal(t, "Paris", qs[0].Options["B"])
	assert.Equal(t, model.Easy, qs[0].Difficulty)
	assert.Equal(t, []string{"geo", "europe"}, []string(qs[0].Tags))
}

func TestExtract_Text(t *testing.T) {
	doc := `1. What is 2 + 2?
A. 3
B. 4
C. 5
D. 22
Answer: B

2) Which planet is
known as the red planet?
A) Venus
B) Earth
C) Mars
D) Jupiter
答案：C
`
	qs, err := NewExtractService(nil).Extract(context.Background(), model.Document{Filename: "notes.md", Data: []byte(doc)})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "What is 2 + 2?", qs[0].Text)
	assert.Equal(t, "B", qs[0].CorrectAnswer)
	assert.Equal(t, "Which planet is known as the red planet?", qs[1].Text)
	assert.Equal(t, "Mars", qs[1].Options["C"])
	assert.Equal(t, "C", qs[1].CorrectAnswer)
	assert.Equal(t, model.Average, qs[1].Difficulty)
}

func TestExtract_JSONEmptyList(t *testing.T) {
	qs, err := NewExtractService(nil).Extract(context.Background(), model.Document{Filename: "out.json", Data: []byte(`{"questions": []}`)})
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestExtract_UnsupportedFile(t *testing.T) {
	_, err := NewExtractService(nil).Extract(context.Background(), model.Document{Filename: "slides.pptx"})
	assert.ErrorIs(t, err, util.ErrUnsupportedFile)
}

func TestExtract_FallsBackToAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "```json\n{\"questions\":[{\"text\":\"Largest ocean?\",\"options\":{\"A\":\"Atlantic\",\"B\":\"Pacific\",\"C\":\"Indian\",\"D\":\"Arctic\"},\"correctAnswer\":\"B\"}]}\n```"
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	ai := NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: time.Second})
	qs, err := NewExtractService(ai).Extract(context.Background(), model.Document{
		Filename: "scan.txt",
		Data:     []byte("The largest ocean is the Pacific, not the Atlantic."),
	})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Largest ocean?", qs[0].Text)
	assert.Equal(t, "B", qs[0].CorrectAnswer)
}

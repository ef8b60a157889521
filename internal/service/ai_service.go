package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"quiz_portal/internal/composer"
	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/logger"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// AIService 兼容 OpenAI chat/completions 协议的出题客户端
type AIService struct {
	mu         sync.RWMutex
	config     config.AIConfig
	httpClient *http.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{config: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// UpdateConfig 配置热更新时替换 AI 参数
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.httpClient = &http.Client{Timeout: cfg.Timeout}
}

func (s *AIService) settings() (config.AIConfig, *http.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.httpClient
}

func (s *AIService) IsAvailable() bool {
	cfg, _ := s.settings()
	return cfg.APIKey != "" && cfg.BaseURL != ""
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat 单轮对话，返回模型回复文本
func (s *AIService) Chat(ctx context.Context, system, prompt string) (string, error) {
	cfg, client := s.settings()
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		return "", util.ErrAIUnavailable
	}

	reqBody := ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("AI API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

const generateSystemPrompt = `You are an exam question writer. Respond with ONLY valid JSON (no markdown, no code fences, no explanations) in this format:

{
  "questions": [
    {
      "text": "Question text?",
      "options": {"A": "...", "B": "...", "C": "...", "D": "..."},
      "correctAnswer": "A",
      "note": "short explanation of the answer",
      "tags": ["topic"]
    }
  ]
}

Rules:
- Every question has exactly four options labelled A, B, C and D
- Exactly one option is correct and correctAnswer is its label
- Questions must be factually accurate
- Write everything in the requested language
- Return ONLY the JSON object, nothing else`

const extractSystemPrompt = `You extract multiple-choice questions from documents. Respond with ONLY valid JSON in the same format:
{"questions":[{"text":"...","options":{"A":"...","B":"...","C":"...","D":"..."},"correctAnswer":"A","note":"","tags":[]}]}
Only include questions that actually appear in the document and have four options. If there are none, return {"questions":[]}.`

type aiQuestionList struct {
	Questions []struct {
		Text          string            `json:"text"`
		Options       map[string]string `json:"options"`
		CorrectAnswer string            `json:"correctAnswer"`
		Note          string            `json:"note"`
		Tags          []string          `json:"tags"`
	} `json:"questions"`
}

// GenerateQuestions 按难度、语言、数量和分类生成题目；无效题目被丢弃
func (s *AIService) GenerateQuestions(ctx context.Context, spec model.GenerationSpec) ([]model.Question, error) {
	cfg, _ := s.settings()
	count := spec.Count
	if cfg.MaxQuestions > 0 && count > cfg.MaxQuestions {
		count = cfg.MaxQuestions
	}

	var topic []string
	for _, part := range spec.Category.Parts() {
		if part != "" {
			topic = append(topic, part)
		}
	}
	prompt := fmt.Sprintf("Write %d %s multiple-choice questions in %s.", count, strings.ToLower(string(spec.Difficulty)), spec.Language)
	if len(topic) > 0 {
		prompt += " Topic: " + strings.Join(topic, " / ") + "."
	}

	content, err := s.Chat(ctx, generateSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	questions, err := parseAIQuestions(content, spec.Difficulty)
	if err != nil {
		return nil, err
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

// ExtractQuestions 让模型从文档文本中识别题目
func (s *AIService) ExtractQuestions(ctx context.Context, text string) ([]model.Question, error) {
	content, err := s.Chat(ctx, extractSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	return parseAIQuestions(content, model.Average)
}

func parseAIQuestions(content string, difficulty model.Difficulty) ([]model.Question, error) {
	var list aiQuestionList
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &list); err != nil {
		return nil, fmt.Errorf("AI returned invalid JSON: %w", err)
	}

	out := make([]model.Question, 0, len(list.Questions))
	for i, item := range list.Questions {
		q := model.Question{QuestionBody: model.QuestionBody{
			Text:          item.Text,
			Options:       model.Options(item.Options),
			CorrectAnswer: item.CorrectAnswer,
			Difficulty:    difficulty,
			Note:          item.Note,
			Tags:          item.Tags,
		}}
		q = composer.NormalizeQuestion(q)
		if errs := composer.ValidateQuestion(q, ""); !errs.Empty() {
			logger.Log.Debug("drop invalid AI question", zap.Int("index", i), zap.Any("errors", errs))
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// cleanJSONContent 去掉模型偶尔包裹的代码块标记及前后多余文字
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

// Package upstream is the HTTP client of the external quiz REST API.
// Responses use the envelope {code, message, data}.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/monitoring"
	"quiz_portal/pkg/tracing"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// APIError is a non-2xx answer of the backend.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        interface{}
	raw         io.Reader
	contentType string
	header      http.Header
}

func (c *Client) do(ctx context.Context, r request, out interface{}) (err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "upstream."+r.op,
		attribute.String("http.method", r.method),
		attribute.String("upstream.path", r.path))
	defer func() {
		tracing.EndSpan(span, err)
		monitoring.ObserveBackend(r.op, start, err)
	}()

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	body := r.raw
	contentType := r.contentType
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return err
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := util.BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	tracing.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", r.op, err)
	}

	var env envelope
	if len(bytes.TrimSpace(data)) > 0 {
		if jerr := json.Unmarshal(data, &env); jerr != nil && resp.StatusCode < 300 {
			return fmt.Errorf("%s: invalid response: %w", r.op, jerr)
		}
	}

	if resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: msg}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", r.op, err)
		}
	}
	return nil
}

func (c *Client) FetchQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := c.do(ctx, request{op: "fetch_quiz", method: http.MethodGet, path: "/quizzes/" + url.PathEscape(id)}, &quiz)
	if statusOf(err) == http.StatusNotFound {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func categoryQuery(q url.Values, path model.CategoryPath) {
	names := []string{"region", "examType", "specificClass", "subject", "chapter"}
	for i, part := range path.Parts() {
		if part == "" {
			break
		}
		q.Set(names[i], part)
	}
}

func (c *Client) ListQuizzes(ctx context.Context, filter model.QuizFilter) (*model.QuizPage, error) {
	q := url.Values{}
	categoryQuery(q, filter.Category)
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var page model.QuizPage
	if err := c.do(ctx, request{op: "list_quizzes", method: http.MethodGet, path: "/quizzes", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SaveQuiz(ctx context.Context, quiz *model.Quiz) (*model.Quiz, error) {
	var saved model.Quiz
	if err := c.do(ctx, request{op: "save_quiz", method: http.MethodPost, path: "/quizzes", body: quiz}, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) UpdateQuiz(ctx context.Context, id string, quiz *model.Quiz) (*model.Quiz, error) {
	var saved model.Quiz
	err := c.do(ctx, request{op: "update_quiz", method: http.MethodPut, path: "/quizzes/" + url.PathEscape(id), body: quiz}, &saved)
	if statusOf(err) == http.StatusNotFound {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) DeleteQuiz(ctx context.Context, id string) error {
	err := c.do(ctx, request{op: "delete_quiz", method: http.MethodDelete, path: "/quizzes/" + url.PathEscape(id)}, nil)
	if statusOf(err) == http.StatusNotFound {
		return util.ErrQuizNotFound
	}
	return err
}

func (c *Client) SetApprovalStatus(ctx context.Context, id string, status model.ApprovalStatus) error {
	body := map[string]model.ApprovalStatus{"approvalStatus": status}
	err := c.do(ctx, request{op: "set_status", method: http.MethodPatch, path: "/quizzes/" + url.PathEscape(id) + "/status", body: body}, nil)
	if statusOf(err) == http.StatusNotFound {
		return util.ErrQuizNotFound
	}
	return err
}

// SubmitAttempt 附带 Idempotency-Key，重试同一次作答不会重复判分
func (c *Client) SubmitAttempt(ctx context.Context, quizID string, sub model.AttemptSubmission) (*model.SubmitReceipt, error) {
	header := http.Header{}
	if sub.AttemptKey != "" {
		header.Set("Idempotency-Key", sub.AttemptKey)
	}
	var receipt model.SubmitReceipt
	err := c.do(ctx, request{
		op:     "submit_attempt",
		method: http.MethodPost,
		path:   "/quizzes/" + url.PathEscape(quizID) + "/attempts",
		body:   sub,
		header: header,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) FetchResult(ctx context.Context, resultID string) (*model.AttemptResult, error) {
	var result model.AttemptResult
	err := c.do(ctx, request{op: "fetch_result", method: http.MethodGet, path: "/results/" + url.PathEscape(resultID)}, &result)
	if statusOf(err) == http.StatusNotFound {
		return nil, util.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SubmitReport(ctx context.Context, report *model.QuestionReport) error {
	return c.do(ctx, request{op: "submit_report", method: http.MethodPost, path: "/reports", body: report}, nil)
}

func (c *Client) ListReports(ctx context.Context, quizID string) ([]model.QuestionReport, error) {
	var reports []model.QuestionReport
	err := c.do(ctx, request{op: "list_reports", method: http.MethodGet, path: "/quizzes/" + url.PathEscape(quizID) + "/reports"}, &reports)
	return reports, err
}

func (c *Client) FetchCategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	var tree []model.CategoryNode
	err := c.do(ctx, request{op: "fetch_categories", method: http.MethodGet, path: "/categories"}, &tree)
	return tree, err
}

func (c *Client) SaveCategoryTree(ctx context.Context, tree []model.CategoryNode) error {
	return c.do(ctx, request{op: "save_categories", method: http.MethodPut, path: "/categories", body: tree}, nil)
}

func (c *Client) ListBankQuestions(ctx context.Context, path model.CategoryPath) ([]model.Question, error) {
	q := url.Values{}
	categoryQuery(q, path)
	var questions []model.Question
	err := c.do(ctx, request{op: "list_bank", method: http.MethodGet, path: "/bank/questions", query: q}, &questions)
	return questions, err
}

func (c *Client) AddBankQuestions(ctx context.Context, path model.CategoryPath, questions []model.Question) error {
	body := struct {
		Category  model.CategoryPath `json:"categoryPath"`
		Questions []model.Question   `json:"questions"`
	}{path, questions}
	return c.do(ctx, request{op: "add_bank", method: http.MethodPost, path: "/bank/questions", body: body}, nil)
}

// ExtractQuestionsFromDocument 以 multipart 上传文档，后端可能返回空列表
func (c *Client) ExtractQuestionsFromDocument(ctx context.Context, doc model.Document) ([]model.Question, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", doc.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out struct {
		Questions []model.Question `json:"questions"`
	}
	err = c.do(ctx, request{
		op:          "extract_questions",
		method:      http.MethodPost,
		path:        "/questions/extract",
		raw:         &buf,
		contentType: w.FormDataContentType(),
	}, &out)
	return out.Questions, err
}

func (c *Client) GenerateQuestionsAI(ctx context.Context, spec model.GenerationSpec) ([]model.Question, error) {
	var out struct {
		Questions []model.Question `json:"questions"`
	}
	err := c.do(ctx, request{op: "generate_questions", method: http.MethodPost, path: "/questions/generate", body: spec}, &out)
	return out.Questions, err
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthSession, error) {
	body := map[string]string{"email": email, "password": password}
	var session model.AuthSession
	err := c.do(ctx, request{op: "login", method: http.MethodPost, path: "/auth/login", body: body}, &session)
	if s := statusOf(err); s == http.StatusUnauthorized || s == http.StatusNotFound {
		return nil, util.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (*model.AuthSession, error) {
	var session model.AuthSession
	err := c.do(ctx, request{op: "signup", method: http.MethodPost, path: "/auth/signup", body: req}, &session)
	if statusOf(err) == http.StatusConflict {
		return nil, util.ErrEmailRegistered
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

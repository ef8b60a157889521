package session

import (
	"context"
	"errors"
	"fmt"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/cache"
	"time"
)

// Record 可恢复的作答进度，每个 (用户, 测验) 一条
type Record struct {
	Answers              map[int]int `json:"answers"`
	CurrentQuestionIndex int         `json:"currentQuestionIndex"`
	// StartTimestamp unix 毫秒
	StartTimestamp int64  `json:"startTimestamp"`
	AttemptKey     string `json:"attemptKey"`
}

func (r *Record) StartedAt() time.Time {
	return time.UnixMilli(r.StartTimestamp)
}

// Store 在 cache.KV 中保存作答记录与最近拉取的测验内容。
// 对引擎而言写入失败不致命。
type Store struct {
	kv         cache.KV
	prefix     string
	grace      time.Duration
	payloadTTL time.Duration
}

func NewStore(kv cache.KV, prefix string, grace, payloadTTL time.Duration) *Store {
	return &Store{kv: kv, prefix: prefix, grace: grace, payloadTTL: payloadTTL}
}

func (s *Store) recordKey(userID, quizID string) string {
	return fmt.Sprintf("%s:attempt:%s:%s", s.prefix, userID, quizID)
}

func (s *Store) payloadKey(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s:payload", s.prefix, quizID)
}

// Load 没有记录时返回 nil, nil
func (s *Store) Load(ctx context.Context, userID, quizID string) (*Record, error) {
	var rec Record
	err := cache.GetJSON(ctx, s.kv, s.recordKey(userID, quizID), &rec)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Answers == nil {
		rec.Answers = map[int]int{}
	}
	return &rec, nil
}

// minRecordTTL 超过截止时间后仍写入的记录（例如自动提交失败）至少保留这么久
const minRecordTTL = time.Minute

// Save 写入 rec，过期时间固定为 开始时间+时长+grace，不因重复写入而顺延
func (s *Store) Save(ctx context.Context, userID, quizID string, rec *Record, duration time.Duration, now time.Time) error {
	ttl := rec.StartedAt().Add(duration + s.grace).Sub(now)
	if ttl < minRecordTTL {
		ttl = minRecordTTL
	}
	return cache.SetJSON(ctx, s.kv, s.recordKey(userID, quizID), rec, ttl)
}

func (s *Store) Clear(ctx context.Context, userID, quizID string) error {
	return s.kv.Delete(ctx, s.recordKey(userID, quizID))
}

func (s *Store) LoadPayload(ctx context.Context, quizID string) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := cache.GetJSON(ctx, s.kv, s.payloadKey(quizID), &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (s *Store) SavePayload(ctx context.Context, quiz *model.Quiz) error {
	return cache.SetJSON(ctx, s.kv, s.payloadKey(quiz.ID), quiz, s.payloadTTL)
}

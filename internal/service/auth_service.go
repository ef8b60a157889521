package service

import (
	"context"
	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/logger"

	"go.uber.org/zap"
)

type AuthService struct {
	Backend Identity
	Cfg     *config.Config
}

func NewAuthService(backend Identity, cfg *config.Config) *AuthService {
	return &AuthService{
		Backend: backend,
		Cfg:     cfg,
	}
}

// LoginResult 门户签发的令牌；远程后端令牌封装在其中
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (s *AuthService) issue(session *model.AuthSession) (*LoginResult, error) {
	token, err := util.GenerateJWT(&session.User, session.Token, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: session.User}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	session, err := s.Backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("user logged in", zap.String("user_id", session.User.ID))
	return s.issue(session)
}

func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*LoginResult, error) {
	session, err := s.Backend.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("user signed up", zap.String("user_id", session.User.ID))
	return s.issue(session)
}

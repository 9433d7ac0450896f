// Package auth issues and validates the bearer tokens that identify guest
// learners.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

// MinSecretLength is the shortest accepted HMAC signing key.
const MinSecretLength = 16

const tokenTypeLearner = "learner"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakSecret   = errors.New("jwt secret is too short")
)

// Claims represents the custom JWT claims used by the application.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

type Token struct {
	Learner   domain.Learner `json:"learner"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// JWTService handles generation and validation of learner tokens.
type JWTService struct {
	secret   []byte
	duration time.Duration
	issuer   string
	store    ports.Store
	log      *zap.Logger
}

func NewJWTService(secret string, duration time.Duration, issuer string, store ports.Store, log *zap.Logger) (*JWTService, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	log.Info("JWT service initialized",
		zap.Duration("token_duration", duration),
		zap.String("issuer", issuer),
	)
	return &JWTService{
		secret:   []byte(secret),
		duration: duration,
		issuer:   issuer,
		store:    store,
		log:      log,
	}, nil
}

// IssueGuest creates a new anonymous learner and a token for it.
func (s *JWTService) IssueGuest(ctx context.Context) (Token, error) {
	learner := domain.Learner{ID: uuid.New().String(), CreatedAt: time.Now().UTC()}

	data, err := json.Marshal(learner)
	if err != nil {
		return Token{}, err
	}
	if err := s.store.Set(ctx, domain.LearnerKey(learner.ID, domain.KeyLearner), string(data)); err != nil {
		return Token{}, fmt.Errorf("failed to save learner: %w", err)
	}

	tok, exp, err := s.sign(learner.ID)
	if err != nil {
		return Token{}, err
	}
	s.log.Info("guest learner created", zap.String("learner_id", learner.ID))
	return Token{Learner: learner, Token: tok, ExpiresAt: exp}, nil
}

// Refresh swaps a still-valid token for a fresh one for the same learner.
func (s *JWTService) Refresh(ctx context.Context, tokenString string) (Token, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Token{}, err
	}
	learner, err := s.Learner(ctx, claims.Subject)
	if err != nil {
		return Token{}, err
	}
	tok, exp, err := s.sign(learner.ID)
	if err != nil {
		return Token{}, err
	}
	return Token{Learner: learner, Token: tok, ExpiresAt: exp}, nil
}

func (s *JWTService) Learner(ctx context.Context, id string) (domain.Learner, error) {
	raw, err := s.store.Get(ctx, domain.LearnerKey(id, domain.KeyLearner))
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Learner{}, fmt.Errorf("%w: unknown learner", ErrInvalidToken)
	}
	if err != nil {
		return domain.Learner{}, fmt.Errorf("failed to load learner: %w", err)
	}
	var l domain.Learner
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return domain.Learner{}, fmt.Errorf("failed to decode learner: %w", err)
	}
	return l, nil
}

// ValidateToken parses and validates a JWT token string, returning the claims
// if the token is a learner token signed by this service.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != tokenTypeLearner || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) sign(learnerID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.duration)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learnerID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Type: tokenTypeLearner,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign token", zap.String("learner_id", learnerID), zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// ResolveSecret prefers the secret stored at path/field in the secret source
// and falls back to the static value.
func ResolveSecret(ctx context.Context, static string, src ports.SecretSource, path, field string, log *zap.Logger) (string, error) {
	if src != nil && path != "" {
		secret, err := src.Secret(ctx, path, field)
		if err == nil && secret != "" {
			log.Info("JWT secret loaded from secret store", zap.String("path", path))
			return secret, nil
		}
		log.Warn("Falling back to configured JWT secret", zap.String("path", path), zap.Error(err))
	}
	if len(static) < MinSecretLength {
		return "", ErrWeakSecret
	}
	return static, nil
}

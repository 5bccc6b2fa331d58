package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/constants"
	"lodgetix/internal/users"
	"lodgetix/pkg/cache"
	"lodgetix/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrNotAnonymous       = errors.New("current session is not anonymous")
	ErrInvalidOTP         = errors.New("invalid or expired one-time password")
)

// OTPSender delivers one-time passcodes. Implemented by the notifications
// email service; kept as an interface to avoid a circular dependency.
type OTPSender interface {
	SendOneTimePassword(ctx context.Context, email, code, redirectURL string) error
}

type Service interface {
	SetCacheService(cacheService cache.Service)
	SetOTPSender(sender OTPSender)

	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error
	ValidateToken(tokenString string) (*JWTClaims, error)

	// Session bootstrap for the reservation flow
	SignInAnonymously(ctx context.Context) (*AuthResponse, error)
	ConvertAnonymousUser(ctx context.Context, userID string, req *ConvertAnonymousRequest) (*AuthResponse, error)
	SendOneTimePassword(ctx context.Context, email string) error
	VerifyOneTimePassword(ctx context.Context, email, code string) (*AuthResponse, error)
	IsEmailRegistered(ctx context.Context, email string) (bool, error)
}

type service struct {
	repo         Repository
	config       *config.Config
	cacheService cache.Service
	otpSender    OTPSender
}

func NewService(repo Repository, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		config: cfg,
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) SetOTPSender(sender OTPSender) {
	s.otpSender = sender
}

func (s *service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	// Check if user already exists
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Set default role if not provided
	role := req.Role
	if role == "" {
		role = string(users.RoleUser)
	}
	role = strings.ToUpper(role) // stored as uppercase enum
	if !users.IsValidRole(role) || role == string(users.RoleAnonymous) {
		role = string(users.RoleUser)
	}

	user := &users.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashedPassword),
		Role:      users.Role(role),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	return s.buildAuthResponse(user, tokenPair), nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogAuthSuccess(ctx, user.ID.String(), "password")
	return s.buildAuthResponse(user, tokenPair), nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	// Verify user still exists
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return s.generateTokenPair(user)
}

func (s *service) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	// Verify current password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	// Hash new password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.UpdateUserPassword(ctx, userID, string(hashedPassword))
}

func (s *service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return s.validateToken(tokenString)
}

//  SESSION BOOTSTRAP

// SignInAnonymously creates a throwaway session so a reservation attempt
// always has a backend identity to attach to. Called transparently by the
// reservation orchestrator when no session exists.
func (s *service) SignInAnonymously(ctx context.Context) (*AuthResponse, error) {
	guestID := uuid.New()
	user := &users.User{
		ID:          guestID,
		FirstName:   "Guest",
		Email:       fmt.Sprintf("guest-%s@anon.lodgetix.io", guestID.String()),
		Role:        users.RoleAnonymous,
		IsAnonymous: true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create anonymous user: %w", err)
	}

	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogAuthSuccess(ctx, user.ID.String(), "anonymous")
	return s.buildAuthResponse(user, tokenPair), nil
}

// ConvertAnonymousUser upgrades an anonymous session to a credentialed one.
// Fails when the current session is not anonymous.
func (s *service) ConvertAnonymousUser(ctx context.Context, userID string, req *ConvertAnonymousRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if !user.IsAnonymous {
		return nil, ErrNotAnonymous
	}

	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"email":        req.Email,
		"password":     string(hashedPassword),
		"role":         string(users.RoleUser),
		"is_anonymous": false,
	}
	if v := req.Metadata["first_name"]; v != "" {
		updates["first_name"] = v
	}
	if v := req.Metadata["last_name"]; v != "" {
		updates["last_name"] = v
	}
	if v := req.Metadata["lodge_name"]; v != "" {
		updates["lodge_name"] = v
	}
	if v := req.Metadata["lodge_number"]; v != "" {
		updates["lodge_number"] = v
	}
	if v := req.Metadata["rank"]; v != "" {
		updates["rank"] = v
	}

	if err := s.repo.UpdateUser(ctx, userID, updates); err != nil {
		return nil, err
	}

	user, err = s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	return s.buildAuthResponse(user, tokenPair), nil
}

// SendOneTimePassword generates a six-digit code, caches it against the
// email and hands it to the notification sender with the fixed redirect URL.
func (s *service) SendOneTimePassword(ctx context.Context, email string) error {
	if s.cacheService == nil {
		return fmt.Errorf("cache service not configured for OTP flow")
	}

	code, err := generateOTPCode()
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}

	if err := s.cacheService.Set(ctx, constants.BuildOTPKey(email), code, s.config.Redis.TempDataTTL); err != nil {
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	if s.otpSender == nil {
		return fmt.Errorf("otp sender not configured")
	}
	return s.otpSender.SendOneTimePassword(ctx, email, code, s.config.Email.OTPRedirectURL)
}

// VerifyOneTimePassword exchanges an emailed code for a session. The code is
// single-use; it is deleted on a successful match.
func (s *service) VerifyOneTimePassword(ctx context.Context, email, code string) (*AuthResponse, error) {
	if s.cacheService == nil {
		return nil, fmt.Errorf("cache service not configured for OTP flow")
	}

	var stored string
	key := constants.BuildOTPKey(email)
	if err := s.cacheService.Get(ctx, key, &stored); err != nil {
		return nil, ErrInvalidOTP
	}
	if stored != code {
		return nil, ErrInvalidOTP
	}

	if err := s.cacheService.Delete(ctx, key); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to delete consumed OTP")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrUserNotFound
	}

	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogAuthSuccess(ctx, user.ID.String(), "otp")
	return s.buildAuthResponse(user, tokenPair), nil
}

// IsEmailRegistered is an administrative lookup; the route that exposes it
// requires the admin role since it leaks account existence.
func (s *service) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	return s.repo.EmailExists(ctx, email)
}

//  INTERNAL HELPERS

func (s *service) buildAuthResponse(user *users.User, tokenPair *TokenPair) *AuthResponse {
	return &AuthResponse{
		User: UserResponse{
			ID:          user.ID.String(),
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			Email:       user.Email,
			Role:        string(user.Role),
			IsAnonymous: user.IsAnonymous,
			LodgeName:   user.LodgeName,
			LodgeNumber: user.LodgeNumber,
			Rank:        user.Rank,
			CreatedAt:   user.CreatedAt,
			UpdatedAt:   user.UpdatedAt,
		},
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}
}

func (s *service) generateTokenPair(user *users.User) (*TokenPair, error) {
	now := time.Now()
	userID := user.ID.String()

	accessClaims := JWTClaims{
		UserID:    userID,
		Email:     user.Email,
		Role:      string(user.Role),
		Type:      "access",
		Anonymous: user.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.JWTExpiresIn)),
			Issuer:    "lodgetix",
			Subject:   userID,
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	refreshClaims := JWTClaims{
		UserID:    userID,
		Email:     user.Email,
		Role:      string(user.Role),
		Type:      "refresh",
		Anonymous: user.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.RefreshExpiresIn)),
			Issuer:    "lodgetix",
			Subject:   userID,
		},
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}

func (s *service) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWT.Secret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func generateOTPCode() (string, error) {
	const digits = "0123456789"
	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}

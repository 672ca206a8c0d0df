package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

const passwordResetTTL = time.Hour

// Claims represents the JWT claims of a locally issued access token
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// IdentityService handles accounts, sessions and profiles. Tokens are either
// issued locally or, when a verifier is configured, by the external provider.
type IdentityService struct {
	userRepo  ports.UserRepository
	authRepo  ports.AuthRepository
	boardRepo ports.BoardRepository
	verifier  ports.IdentityVerifier
	mailer    ports.Mailer
	jwtConfig config.JWTConfig
	publicURL string
	logger    *logger.Logger
	now       func() time.Time
}

var _ ports.IdentityService = (*IdentityService)(nil)

// NewIdentityService creates a new identity service. verifier may be nil.
func NewIdentityService(
	userRepo ports.UserRepository,
	authRepo ports.AuthRepository,
	boardRepo ports.BoardRepository,
	verifier ports.IdentityVerifier,
	mailer ports.Mailer,
	jwtConfig config.JWTConfig,
	publicURL string,
	logger *logger.Logger,
) *IdentityService {
	return &IdentityService{
		userRepo:  userRepo,
		authRepo:  authRepo,
		boardRepo: boardRepo,
		verifier:  verifier,
		mailer:    mailer,
		jwtConfig: jwtConfig,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.WithComponent("identity"),
		now:       time.Now,
	}
}

// Register creates a new local account
func (s *IdentityService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, entities.ErrEmailTaken
	} else if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hashedPassword),
		Provider:     entities.AuthProviderLocal,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Infow("User registered successfully", "user_id", user.ID, "email", user.Email)

	return s.issueTokens(ctx, user)
}

// Login authenticates a user and returns tokens
func (s *IdentityService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			s.logger.Warnw("Login attempt with non-existent email", "email", req.Email)
			return nil, entities.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.IsActive {
		s.logger.Warnw("Login attempt with inactive account", "email", req.Email, "user_id", user.ID)
		return nil, entities.ErrAccountInactive
	}

	if user.PasswordHash == "" {
		s.logger.Warnw("Password login for externally managed account", "user_id", user.ID)
		return nil, entities.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warnw("Login attempt with invalid password", "email", req.Email, "user_id", user.ID)
		return nil, entities.ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warnw("Failed to update last login time", "error", err, "user_id", user.ID)
	}

	s.logger.Infow("User logged in successfully", "user_id", user.ID, "email", user.Email)

	return s.issueTokens(ctx, user)
}

// RefreshToken rotates the refresh token and issues a new access token
func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (*ports.AuthResponse, error) {
	tokenHash := hashToken(refreshToken)

	storedToken, err := s.authRepo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	if storedToken.IsExpired() || storedToken.IsRevoked() {
		return nil, entities.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.IsActive {
		return nil, entities.ErrAccountInactive
	}

	// Only the request that revokes the token may rotate it.
	if err := s.authRepo.RevokeRefreshToken(ctx, tokenHash); err != nil {
		if errors.Is(err, entities.ErrInvalidToken) {
			s.logger.LogSecurityEvent("refresh_token_reuse", user.ID.String(), "", nil)
			return nil, err
		}
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes all refresh tokens for a user
func (s *IdentityService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.authRepo.RevokeAllUserTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	s.logger.Infow("User logged out successfully", "user_id", userID)
	return nil
}

// Authenticate resolves a bearer token to an active user.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, entities.ErrAuthenticationRequired
	}

	claims, localErr := s.ValidateToken(token)
	if localErr == nil {
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return nil, entities.ErrAuthenticationRequired
		}
		return s.activeUser(ctx, userID)
	}

	if s.verifier == nil {
		s.logger.Debugw("Rejected access token", "error", localErr)
		return nil, entities.ErrAuthenticationRequired
	}

	ext, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debugw("Rejected identity provider token", "error", err)
		return nil, entities.ErrAuthenticationRequired
	}

	user, err := s.provision(ctx, ext)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, entities.ErrAccountInactive
	}
	return user, nil
}

func (s *IdentityService) activeUser(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return nil, entities.ErrAuthenticationRequired
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, entities.ErrAccountInactive
	}
	return user, nil
}

// provision finds the account bound to the external subject, links an existing
// account with the same email, or creates a new one. Email based linking and
// creation require the provider to have verified the address, since board
// invitations are matched by email.
func (s *IdentityService) provision(ctx context.Context, ext *ports.ExternalIdentity) (*entities.User, error) {
	user, err := s.userRepo.GetByExternalID(ctx, entities.AuthProviderOIDC, ext.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if ext.Email == "" {
		s.logger.Warnw("Identity provider token without email", "subject", ext.Subject)
		return nil, entities.ErrAuthenticationRequired
	}
	if !ext.EmailVerified {
		s.logger.LogSecurityEvent("unverified_external_email", "", "", map[string]interface{}{
			"subject": ext.Subject,
			"email":   ext.Email,
		})
		return nil, entities.ErrAuthenticationRequired
	}

	subject := ext.Subject
	user, err = s.userRepo.GetByEmail(ctx, ext.Email)
	switch {
	case err == nil:
		user.Provider = entities.AuthProviderOIDC
		user.ExternalID = &subject
		if user.AvatarURL == "" {
			user.AvatarURL = ext.Picture
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to link user: %w", err)
		}
		s.logger.Infow("Linked identity provider account", "user_id", user.ID, "subject", subject)
		return user, nil
	case !errors.Is(err, entities.ErrUserNotFound):
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user = &entities.User{
		ID:         uuid.New(),
		Email:      ext.Email,
		Name:       ext.Name,
		AvatarURL:  ext.Picture,
		Provider:   entities.AuthProviderOIDC,
		ExternalID: &subject,
		IsActive:   true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			// created concurrently by another request
			return s.userRepo.GetByEmail(ctx, ext.Email)
		}
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	s.logger.Infow("Provisioned user from identity provider", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// ValidateToken validates a locally issued JWT and returns its claims
func (s *IdentityService) ValidateToken(tokenString string) (*ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithIssuer(s.jwtConfig.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &ports.Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// RequestPasswordReset mails a single-use reset link. Unknown or externally
// managed accounts succeed silently.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, entities.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.PasswordHash == "" || !user.IsActive {
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return err
	}

	reset := &entities.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: s.now().Add(passwordResetTTL),
	}
	if err := s.authRepo.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}

	msg := ports.MailMessage{
		To:      user.Email,
		Subject: "Reset your TaskFlow password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in one hour.\n\n%s/reset-password?token=%s\n",
			user.DisplayName(), s.publicURL, token),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Errorw("Failed to send password reset mail", "error", err, "user_id", user.ID)
		return fmt.Errorf("failed to send password reset mail: %w", err)
	}

	s.logger.LogSecurityEvent("password_reset_requested", user.ID.String(), "", nil)
	return nil
}

// ResetPassword consumes a reset token, sets the password and ends all sessions.
func (s *IdentityService) ResetPassword(ctx context.Context, req ports.ResetPasswordRequest) error {
	reset, err := s.authRepo.GetPasswordReset(ctx, hashToken(req.Token))
	if err != nil {
		if errors.Is(err, entities.ErrInvalidToken) {
			return err
		}
		return fmt.Errorf("failed to load password reset: %w", err)
	}
	if !reset.IsUsable(s.now()) {
		return entities.ErrInvalidToken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.authRepo.ConsumePasswordReset(ctx, reset, string(hashedPassword), s.now().UTC()); err != nil {
		if errors.Is(err, entities.ErrInvalidToken) {
			return err
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.LogSecurityEvent("password_reset", reset.UserID.String(), "", nil)
	return nil
}

func (s *IdentityService) CurrentUser(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile changes name and avatar and mirrors them onto board member records.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID uuid.UUID, req ports.UpdateProfileRequest) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.syncMemberProfiles(ctx, user)
	s.logger.LogUserAction(user.ID.String(), "update_profile", nil)

	user.PasswordHash = ""
	return user, nil
}

func (s *IdentityService) syncMemberProfiles(ctx context.Context, user *entities.User) {
	if s.boardRepo == nil {
		return
	}
	boards, err := s.boardRepo.ListByMember(ctx, user.ID)
	if err != nil {
		s.logger.Warnw("Failed to list boards for profile sync", "error", err, "user_id", user.ID)
		return
	}
	for _, board := range boards {
		if !board.UpdateMemberProfile(user.ID, user.DisplayName(), user.AvatarURL) {
			continue
		}
		if err := s.boardRepo.Update(ctx, board); err != nil {
			s.logger.Warnw("Failed to sync member profile", "error", err, "user_id", user.ID, "board_id", board.ID)
		}
	}
}

// ChangePassword verifies the current password, stores the new one and ends all sessions.
func (s *IdentityService) ChangePassword(ctx context.Context, userID uuid.UUID, req ports.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return entities.ErrPasswordNotApplicable
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		s.logger.LogSecurityEvent("password_change_failed", user.ID.String(), "", nil)
		return entities.ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.authRepo.RevokeAllUserTokens(ctx, user.ID); err != nil {
		s.logger.Warnw("Failed to revoke tokens after password change", "error", err, "user_id", user.ID)
	}

	s.logger.LogSecurityEvent("password_changed", user.ID.String(), "", nil)
	return nil
}

func (s *IdentityService) issueTokens(ctx context.Context, user *entities.User) (*ports.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// Remove password hash from response
	user.PasswordHash = ""

	return &ports.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtConfig.ExpiresIn.Seconds()),
		User:         user,
	}, nil
}

func (s *IdentityService) generateAccessToken(user *entities.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func (s *IdentityService) generateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}

	expiresAt := s.now().Add(s.jwtConfig.RefreshExpiresIn)
	if err := s.authRepo.CreateRefreshToken(ctx, userID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return token, nil
}

func randomToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

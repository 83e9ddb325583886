package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/saludbit/impactou-api/internal/models"
	"github.com/saludbit/impactou-api/pkg/database"
	appErrors "github.com/saludbit/impactou-api/pkg/errors"
	"github.com/saludbit/impactou-api/pkg/jobs"
	"github.com/saludbit/impactou-api/pkg/mailer"
	"github.com/saludbit/impactou-api/pkg/signing"
	"github.com/saludbit/impactou-api/pkg/validation"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type authInstitutionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	UpsertByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Institution, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	Issuer             string
	ResetURL           string
	DefaultInstitution string
}

// AuthService provides authentication use cases.
type AuthService struct {
	db           txProvider
	repo         authUserRepository
	institutions authInstitutionRepository
	signer       *signing.Signer
	jobs         jobEnqueuer
	validator    *validation.Validator
	logger       *zap.Logger
	config       AuthConfig
	now          func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	db txProvider,
	repo authUserRepository,
	institutions authInstitutionRepository,
	signer *signing.Signer,
	queue jobEnqueuer,
	validate *validation.Validator,
	logger *zap.Logger,
	config AuthConfig,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 7 * 24 * time.Hour
	}
	if config.DefaultInstitution == "" {
		config.DefaultInstitution = "Institución General"
	}
	return &AuthService{
		db:           db,
		repo:         repo,
		institutions: institutions,
		signer:       signer,
		jobs:         queue,
		validator:    validate,
		logger:       logger,
		config:       config,
		now:          time.Now,
	}
}

// Register creates a STUDENT account. Without an institution the user joins
// the default one, which is created on first use.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = normaliseEmail(req.Email)
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid registration payload", fields)
	}
	email := req.Email

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	if req.InstitutionID != nil {
		if _, err := s.institutions.FindByID(ctx, *req.InstitutionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, validationError("unknown institution", map[string]string{"institutionId": "institution does not exist"})
			}
			return nil, appErrors.Internal(err, "failed to load institution")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          email,
		Identification: strings.TrimSpace(req.Identification),
		Phone:          strings.TrimSpace(req.Phone),
		PasswordHash:   string(hash),
		Role:           models.RoleStudent,
		InstitutionID:  req.InstitutionID,
	}
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if user.InstitutionID == nil {
			inst, err := s.institutions.UpsertByName(ctx, tx, s.config.DefaultInstitution)
			if err != nil {
				return appErrors.Internal(err, "failed to resolve default institution")
			}
			user.InstitutionID = &inst.ID
			user.InstitutionName = &inst.Name
		}
		if err := s.repo.Create(ctx, tx, user); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "email already registered")
			}
			return appErrors.Internal(err, "failed to create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.repo, s.logger, user.ID, models.AuditActionRegister, "auth", user.ID)
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login authenticates a user and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = normaliseEmail(req.Email)
	if fields := s.validator.Struct(req); fields != nil {
		return nil, validationError("invalid login payload", fields)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &user.ID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record login audit log", zap.Error(err))
	}

	return &models.LoginResponse{
		User:      *user,
		Token:     token,
		ExpiresIn: int64(s.config.AccessTokenExpiry.Seconds()),
	}, nil
}

// Me returns the current user as stored.
func (s *AuthService) Me(ctx context.Context, claims *models.JWTClaims) (*models.User, error) {
	return loadActor(ctx, s.repo, claims)
}

// ChangePassword changes the password for the given user ID.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if fields := s.validator.Struct(req); fields != nil {
		return validationError("invalid change password payload", fields)
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "current password does not match")
	}
	if err := s.setPassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}
	recordAudit(ctx, s.repo, s.logger, userID, models.AuditActionPasswordChange, "auth", userID)
	return nil
}

// ForgotPassword mails a reset link when the address belongs to a user. It
// reveals nothing about whether it does.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	req.Email = normaliseEmail(req.Email)
	if fields := s.validator.Struct(req); fields != nil {
		return validationError("invalid forgot password payload", fields)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return appErrors.Internal(err, "failed to fetch user")
	}

	token, expiresAt, err := s.signer.Generate(user.ID, user.PasswordHash)
	if err != nil {
		return appErrors.Internal(err, "failed to create reset token")
	}
	msg := passwordResetMessage(user, s.resetLink(token), expiresAt)
	if err := s.jobs.Enqueue(jobs.Job{Type: JobSendMail, Payload: msg}); err != nil {
		s.logger.Warn("failed to enqueue password reset email", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token. Tokens die with the password they were
// issued for, so each works once.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if fields := s.validator.Struct(req); fields != nil {
		return validationError("invalid reset password payload", fields)
	}

	invalid := validationError("invalid or expired reset token", map[string]string{"token": "token is invalid or expired"})
	claims, err := s.signer.Parse(req.Token)
	if err != nil {
		return invalid
	}
	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invalid
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if claims.Fingerprint != signing.Fingerprint(user.PasswordHash) {
		return invalid
	}
	if err := s.setPassword(ctx, user.ID, req.Password); err != nil {
		return err
	}
	recordAudit(ctx, s.repo, s.logger, user.ID, models.AuditActionPasswordReset, "auth", user.ID)
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), s.now().UTC()); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	return nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := s.now().UTC()
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) resetLink(token string) string {
	link, err := url.Parse(s.config.ResetURL)
	if err != nil || s.config.ResetURL == "" {
		return token
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()
	return link.String()
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func passwordResetMessage(user *models.User, link string, expiresAt time.Time) mailer.Message {
	text := fmt.Sprintf("Hola %s,\n\nPara restablecer tu contraseña abre el siguiente enlace:\n%s\n\nEl enlace vence el %s UTC.\n",
		user.Name, link, expiresAt.UTC().Format("2006-01-02 15:04"))
	html := fmt.Sprintf(`<p>Hola %s,</p><p>Para restablecer tu contraseña abre el siguiente enlace:</p><p><a href="%s">Restablecer contraseña</a></p><p>El enlace vence el %s UTC.</p>`,
		escapeHTML(user.Name), escapeHTML(link), expiresAt.UTC().Format("2006-01-02 15:04"))
	return mailer.Message{
		To:       user.Email,
		ToName:   user.Name,
		Subject:  "Restablecer contraseña",
		Text:     text,
		HTML:     html,
		Category: "password-reset",
	}
}

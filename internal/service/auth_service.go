package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"elearn-api/internal/cache"
	"elearn-api/internal/domain"
	"elearn-api/internal/email"
	"elearn-api/internal/media"
	"elearn-api/internal/repository"
)

// AuthService coordina registro, sesiones y mutaciones de perfil.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	sessions    cache.SessionStore
	tokens      *TokenService
	emailSender email.Sender
	mediaStore  media.Store
	limiter     RateLimiter
	sessionTTL  time.Duration

	// legacyEmailRule invierte la validación de unicidad de email en
	// UpdateProfile: rechaza cuando el email nuevo no está registrado.
	legacyEmailRule bool
}

// AuthDeps agrupa los colaboradores externos del AuthService.
type AuthDeps struct {
	Users           repository.UserRepository
	Sessions        cache.SessionStore
	Tokens          *TokenService
	Email           email.Sender
	Media           media.Store
	Limiter         RateLimiter
	SessionTTL      time.Duration
	LegacyEmailRule bool
}

var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrCodeMismatch        = errors.New("invalid activation code")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrSessionExpired      = errors.New("session expired, please login again")
	ErrInvalidUser         = errors.New("invalid user")
	ErrNotificationFailure = errors.New("could not send activation email")
	ErrUserNotFound        = errors.New("user not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidRole         = errors.New("invalid role")
)

const sessionTTLDefault = 7 * 24 * time.Hour

func NewAuthService(logger *zap.Logger, deps AuthDeps) *AuthService {
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = sessionTTLDefault
	}
	if deps.Sessions == nil {
		deps.Sessions = cache.NewMemorySessionStore()
	}
	return &AuthService{
		logger:          logger,
		users:           deps.Users,
		sessions:        deps.Sessions,
		tokens:          deps.Tokens,
		emailSender:     deps.Email,
		mediaStore:      deps.Media,
		limiter:         deps.Limiter,
		sessionTTL:      deps.SessionTTL,
		legacyEmailRule: deps.LegacyEmailRule,
	}
}

// SessionTTL expone el TTL de sesión configurado.
func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

// Tokens expone el TokenService asociado.
func (s *AuthService) Tokens() *TokenService { return s.tokens }

// BeginRegistration valida el candidato, emite un ticket de activación firmado
// y envía el código por correo. El ticket solo se considera emitido si el
// correo salió.
func (s *AuthService) BeginRegistration(ctx context.Context, name, email, password string) (string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	password = strings.TrimSpace(password)
	if email == "" {
		return "", ErrInvalidEmail
	}
	if name == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	if s.limiter != nil && !s.limiter.Allow(email) {
		return "", ErrRateLimited
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", ErrDuplicateEmail
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	ticket, code, err := s.tokens.NewActivationTicket(name, email, string(hashBytes))
	if err != nil {
		return "", err
	}

	if s.emailSender == nil {
		return "", ErrNotificationFailure
	}
	expiresAt := time.Now().UTC().Add(5 * time.Minute)
	if err := s.emailSender.SendActivationCode(ctx, email, name, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send activation code failed", zap.Error(err), zap.String("email", email))
		}
		return "", ErrNotificationFailure
	}

	return ticket, nil
}

// CompleteRegistration verifica ticket y código, y crea el usuario. La
// restricción única del store resuelve registros concurrentes.
func (s *AuthService) CompleteRegistration(ctx context.Context, ticket, code string) (domain.User, error) {
	parsed, err := s.tokens.ParseActivationTicket(ticket)
	if err != nil {
		return domain.User{}, ErrTicketInvalid
	}
	if strings.TrimSpace(code) == "" || parsed.Code != strings.TrimSpace(code) {
		return domain.User{}, ErrCodeMismatch
	}

	if _, err := s.users.GetByEmail(ctx, parsed.Email); err == nil {
		return domain.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         parsed.Name,
		Email:        parsed.Email,
		PasswordHash: parsed.PasswordHash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return user, nil
}

// Login autentica por email y password. El error es idéntico para email
// desconocido y password incorrecto.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (domain.User, TokenPair, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return domain.User{}, TokenPair{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Logout elimina la sesión cacheada; el borrado es best-effort.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	if err := s.sessions.Delete(ctx, userID); err != nil && s.logger != nil {
		s.logger.Warn("session delete failed", zap.Error(err), zap.String("user_id", userID))
	}
}

// Refresh rota el par de tokens. La entrada de sesión en cache es la autoridad
// de revocación: sin entrada, el refresh falla aunque la firma sea válida.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.User, TokenPair, error) {
	userID, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return domain.User{}, TokenPair{}, ErrTokenInvalid
	}

	user, ok, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	if !ok {
		return domain.User{}, TokenPair{}, ErrSessionExpired
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// CurrentUser devuelve el snapshot cacheado y cae al store si no existe.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, ok, err := s.sessions.Get(ctx, userID)
	if err == nil && ok {
		return user, nil
	}
	user, err = s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// SocialAuth hace upsert por email: crea el usuario sin password si no existe
// y emite tokens como en Login.
func (s *AuthService) SocialAuth(ctx context.Context, emailAddr, name, avatarURL string) (domain.User, TokenPair, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.User{}, TokenPair{}, ErrInvalidEmail
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, TokenPair{}, err
		}
		user = domain.User{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(name),
			Email:     emailAddr,
			Role:      domain.RoleUser,
			CreatedAt: time.Now().UTC(),
		}
		if avatarURL = strings.TrimSpace(avatarURL); avatarURL != "" {
			user.Avatar = &domain.Avatar{URL: avatarURL}
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				// Registro concurrente: reusar la cuenta que ganó la carrera.
				user, err = s.users.GetByEmail(ctx, emailAddr)
				if err != nil {
					return domain.User{}, TokenPair{}, err
				}
			} else {
				return domain.User{}, TokenPair{}, err
			}
		}
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// UpdateProfileInput lleva los campos opcionales; vacío significa no tocar.
type UpdateProfileInput struct {
	Name  string
	Email string
}

// UpdateProfile aplica cambios de nombre y email, valida unicidad del email y
// actualiza el snapshot de sesión.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if newEmail := normalizeEmail(input.Email); newEmail != "" {
		existing, err := s.users.GetByEmail(ctx, newEmail)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
		if s.legacyEmailRule {
			// Modo de compatibilidad: rechaza cuando el email nuevo NO
			// está registrado.
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.User{}, ErrDuplicateEmail
			}
		} else if err == nil && existing.ID != user.ID {
			return domain.User{}, ErrDuplicateEmail
		}
		user.Email = newEmail
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		user.Name = name
	}

	if err := s.users.UpdateProfile(ctx, user.ID, user.Name, user.Email); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.User{}, ErrDuplicateEmail
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	s.refreshSnapshot(ctx, user)
	return user, nil
}

// UpdatePassword reemplaza el hash tras verificar la contraseña vigente.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) (domain.User, error) {
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)
	if oldPassword == "" || newPassword == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		// Cuenta creada por social auth: no hay contraseña que verificar.
		return domain.User{}, ErrInvalidUser
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hashBytes)); err != nil {
		return domain.User{}, err
	}

	user.PasswordHash = string(hashBytes)
	s.refreshSnapshot(ctx, user)
	return user, nil
}

// UpdateAvatar borra la imagen anterior (best-effort), sube la nueva y
// persiste la referencia.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID, payload string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if s.mediaStore == nil {
		return domain.User{}, errors.New("media store not configured")
	}

	if user.Avatar != nil && user.Avatar.PublicID != "" {
		if err := s.mediaStore.Delete(ctx, user.Avatar.PublicID); err != nil && s.logger != nil {
			s.logger.Warn("old avatar delete failed", zap.Error(err), zap.String("public_id", user.Avatar.PublicID))
		}
	}

	asset, err := s.mediaStore.Upload(ctx, payload)
	if err != nil {
		return domain.User{}, err
	}

	avatar := &domain.Avatar{PublicID: asset.PublicID, URL: asset.URL}
	if err := s.users.UpdateAvatar(ctx, user.ID, avatar); err != nil {
		return domain.User{}, err
	}

	user.Avatar = avatar
	s.refreshSnapshot(ctx, user)
	return user, nil
}

// ListUsers devuelve todos los usuarios; la capa HTTP aplica el gate de admin.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// GetUsersByIDs devuelve los usuarios que existan entre los ids pedidos.
func (s *AuthService) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	return s.users.GetByIDs(ctx, ids)
}

// SetRole cambia el rol de un usuario.
func (s *AuthService) SetRole(ctx context.Context, userID, role string) (domain.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !domain.IsValidRole(role) {
		return domain.User{}, ErrInvalidRole
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteUser elimina el registro y desaloja la sesión cacheada.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return s.sessions.Delete(ctx, userID)
}

func (s *AuthService) issueSession(ctx context.Context, user domain.User) (TokenPair, error) {
	pair, err := s.tokens.GeneratePair(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.sessions.Save(ctx, user, s.sessionTTL); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *AuthService) refreshSnapshot(ctx context.Context, user domain.User) {
	if err := s.sessions.Save(ctx, user, s.sessionTTL); err != nil && s.logger != nil {
		s.logger.Warn("session snapshot refresh failed", zap.Error(err), zap.String("user_id", user.ID))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

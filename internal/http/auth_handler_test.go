package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"elearn-api/internal/cache"
	"elearn-api/internal/domain"
	"elearn-api/internal/repository"
	"elearn-api/internal/service"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(context.Background(), id)
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, name, email string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if other, taken := m.usersByEmail[email]; taken && other != id {
		return repository.ErrDuplicateEmail
	}
	delete(m.usersByEmail, user.Email)
	user.Name = name
	user.Email = email
	m.usersByID[id] = user
	m.usersByEmail[email] = id
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateAvatar(_ context.Context, id string, avatar *domain.Avatar) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Avatar = avatar
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, id, role string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByEmail, user.Email)
	delete(m.usersByID, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(m.usersByID))
	for _, user := range m.usersByID {
		users = append(users, user)
	}
	return users, nil
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	var users []domain.User
	for _, id := range ids {
		if user, ok := m.usersByID[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendActivationCode(_ context.Context, toEmail, _, code string, _ time.Time) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

type authFixture struct {
	router *gin.Engine
	repo   *mockUserRepo
	sender *mockEmailSender
	svc    *service.AuthService
}

func newAuthFixture(deps service.AuthDeps) *authFixture {
	gin.SetMode(gin.TestMode)

	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	if deps.Users == nil {
		deps.Users = repo
	}
	if deps.Email == nil {
		deps.Email = sender
	}
	if deps.Sessions == nil {
		deps.Sessions = cache.NewMemorySessionStore()
	}
	if deps.Tokens == nil {
		deps.Tokens = service.NewTokenService("act-secret", "acc-secret", "ref-secret", 0, 0, 0)
	}

	svc := service.NewAuthService(zap.NewNop(), deps)
	cookies := CookieConfig{
		AccessTTL:  deps.Tokens.AccessTTL(),
		RefreshTTL: deps.Tokens.RefreshTTL(),
	}
	router := NewRouter(
		zap.NewNop(),
		svc,
		cookies,
		NewAuthHandler(zap.NewNop(), svc, cookies),
		NewUserHandler(zap.NewNop(), svc),
		NewAdminHandler(zap.NewNop(), svc),
		NewCourseHandler(zap.NewNop(), nil),
	)
	return &authFixture{router: router, repo: repo, sender: sender, svc: svc}
}

func performRequest(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func seedUser(t *testing.T, repo *mockUserRepo, email, password, role string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.User{
		ID:           "u-" + email,
		Name:         "Seeded",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func loginCookies(t *testing.T, f *authFixture, email, password string) (access, refresh *http.Cookie) {
	t.Helper()
	rec := performRequest(f.router, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d", rec.Code)
	}
	access = responseCookie(rec, accessCookieName)
	refresh = responseCookie(rec, refreshCookieName)
	if access == nil || refresh == nil {
		t.Fatalf("login: expected auth cookies to be set")
	}
	return access, refresh
}

func TestRegisterThenActivate(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})

	rec := performRequest(f.router, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Ann",
		"email":    "ann@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if f.sender.lastTo != "ann@example.com" || f.sender.lastCode == "" {
		t.Fatalf("expected activation email to be sent")
	}

	var registerResp struct {
		ActivationToken string `json:"activation_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &registerResp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registerResp.ActivationToken == "" {
		t.Fatalf("expected activation token in response")
	}

	rec = performRequest(f.router, http.MethodPost, "/auth/activate", map[string]string{
		"activation_token": registerResp.ActivationToken,
		"activation_code":  f.sender.lastCode,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	if _, err := f.repo.GetByEmail(context.Background(), "ann@example.com"); err != nil {
		t.Fatalf("expected user to exist after activation: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)

	rec := performRequest(f.router, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Ann",
		"email":    "ann@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRegisterEmailSendFailure(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{Email: &mockEmailSender{err: errors.New("smtp down")}})

	rec := performRequest(f.router, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Ann",
		"email":    "ann@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestRegisterRateLimited(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{Limiter: &mockLimiter{allow: false}})

	rec := performRequest(f.router, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Ann",
		"email":    "ann@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
}

func TestActivateWrongCode(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})

	rec := performRequest(f.router, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Ann",
		"email":    "ann@example.com",
		"password": "secret1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var registerResp struct {
		ActivationToken string `json:"activation_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &registerResp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	wrong := "0000"
	if f.sender.lastCode == wrong {
		wrong = "1111"
	}
	rec = performRequest(f.router, http.MethodPost, "/auth/activate", map[string]string{
		"activation_token": registerResp.ActivationToken,
		"activation_code":  wrong,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestLoginSetsCookies(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)

	access, refresh := loginCookies(t, f, "ann@example.com", "secret1")
	if !access.HttpOnly || !refresh.HttpOnly {
		t.Fatalf("expected auth cookies to be http-only")
	}
	if access.MaxAge <= 0 || refresh.MaxAge <= access.MaxAge {
		t.Fatalf("expected refresh cookie to outlive access cookie, got %d and %d", access.MaxAge, refresh.MaxAge)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)

	rec := performRequest(f.router, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ann@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestProtectedRouteRequiresCookies(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})

	rec := performRequest(f.router, http.MethodGet, "/users/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestProtectedRouteWithAccessCookie(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	user := seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "ann@example.com", "secret1")

	rec := performRequest(f.router, http.MethodGet, "/users/me", nil, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp struct {
		User domain.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if resp.User.ID != user.ID {
		t.Fatalf("expected user %q, got %q", user.ID, resp.User.ID)
	}
}

func TestRefreshRotatesCookies(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	_, refresh := loginCookies(t, f, "ann@example.com", "secret1")

	// Sin access cookie, el middleware debe rotar el par con el refresh token.
	rec := performRequest(f.router, http.MethodGet, "/users/me", nil, refresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if responseCookie(rec, accessCookieName) == nil {
		t.Fatalf("expected rotated access cookie")
	}
	rotated := responseCookie(rec, refreshCookieName)
	if rotated == nil || rotated.Value == "" {
		t.Fatalf("expected rotated refresh cookie")
	}
}

func TestRefreshWithGarbageToken(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})

	rec := performRequest(f.router, http.MethodGet, "/users/me", nil, &http.Cookie{
		Name:  refreshCookieName,
		Value: "not-a-jwt",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, refresh := loginCookies(t, f, "ann@example.com", "secret1")

	rec := performRequest(f.router, http.MethodPost, "/auth/logout", nil, access, refresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if cleared := responseCookie(rec, accessCookieName); cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected access cookie to be cleared")
	}

	// El refresh token sigue firmado pero la sesión ya no existe en cache.
	rec = performRequest(f.router, http.MethodGet, "/users/me", nil, refresh)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 after logout, got %d", rec.Code)
	}
}

func TestAdminGateRejectsRegularUser(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "ann@example.com", "secret1")

	rec := performRequest(f.router, http.MethodGet, "/admin/users", nil, access)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestAdminGateAllowsAdmin(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "root@example.com", "secret1", domain.RoleAdmin)
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "root@example.com", "secret1")

	rec := performRequest(f.router, http.MethodGet, "/admin/users", nil, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp struct {
		Users []domain.User `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode users response: %v", err)
	}
	if len(resp.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(resp.Users))
	}
}

func TestAdminSetRole(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "root@example.com", "secret1", domain.RoleAdmin)
	user := seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "root@example.com", "secret1")

	rec := performRequest(f.router, http.MethodPut, "/admin/users/role", map[string]string{
		"id":   user.ID,
		"role": domain.RoleAdmin,
	}, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	updated, err := f.repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get updated user: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("expected role %q, got %q", domain.RoleAdmin, updated.Role)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "root@example.com", "secret1", domain.RoleAdmin)
	user := seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "root@example.com", "secret1")

	rec := performRequest(f.router, http.MethodDelete, "/admin/users/"+user.ID, nil, access)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performRequest(f.router, http.MethodDelete, "/admin/users/"+user.ID, nil, access)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestUpdateProfileDuplicateEmail(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	seedUser(t, f.repo, "bob@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "ann@example.com", "secret1")

	rec := performRequest(f.router, http.MethodPut, "/users/me", map[string]string{
		"email": "bob@example.com",
	}, access)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestUpdatePasswordWrongOld(t *testing.T) {
	f := newAuthFixture(service.AuthDeps{})
	seedUser(t, f.repo, "ann@example.com", "secret1", domain.RoleUser)
	access, _ := loginCookies(t, f, "ann@example.com", "secret1")

	rec := performRequest(f.router, http.MethodPut, "/users/me/password", map[string]string{
		"old_password": "wrong1",
		"new_password": "secret2",
	}, access)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

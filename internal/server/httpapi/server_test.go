package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/dbx"
	"github.com/dmitrijs2005/contactbook/internal/logging"
	"github.com/dmitrijs2005/contactbook/internal/server/auth"
	"github.com/dmitrijs2005/contactbook/internal/server/cache"
	"github.com/dmitrijs2005/contactbook/internal/server/config"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
	contactsrepo "github.com/dmitrijs2005/contactbook/internal/server/repositories/contacts"
	usersrepo "github.com/dmitrijs2005/contactbook/internal/server/repositories/users"
	"github.com/dmitrijs2005/contactbook/internal/server/services"
)

// --- in-memory repositories ---

type memUsersRepo struct {
	byUsername map[string]*models.User
	byEmail    map[string]*models.User
	nextID     int64
}

func newMemUsersRepo() *memUsersRepo {
	return &memUsersRepo{
		byUsername: map[string]*models.User{},
		byEmail:    map[string]*models.User{},
		nextID:     1,
	}
}

func (f *memUsersRepo) add(u *models.User) {
	if u.ID == 0 {
		u.ID = f.nextID
		f.nextID++
	}
	f.byUsername[u.Username] = u
	f.byEmail[u.Email] = u
}

func (f *memUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	u.CreatedAt = time.Now()
	f.add(u)
	return u, nil
}

func (f *memUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.byUsername {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *memUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := f.byUsername[username]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *memUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *memUsersRepo) UpdateRefreshToken(ctx context.Context, username string, token *string) error {
	u, ok := f.byUsername[username]
	if !ok {
		return common.ErrorNotFound
	}
	if token == nil {
		u.RefreshToken = ""
	} else {
		u.RefreshToken = *token
	}
	return nil
}

func (f *memUsersRepo) ConfirmEmail(ctx context.Context, email string) error {
	u, ok := f.byEmail[email]
	if !ok {
		return common.ErrorNotFound
	}
	u.Confirmed = true
	return nil
}

func (f *memUsersRepo) UpdateAvatarURL(ctx context.Context, email string, url string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Avatar = url
	return u, nil
}

func (f *memUsersRepo) UpdatePassword(ctx context.Context, email string, hash string) error {
	u, ok := f.byEmail[email]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.RefreshToken = ""
	return nil
}

type memContactsRepo struct {
	contacts map[int64]*models.Contact
	nextID   int64
}

func newMemContactsRepo() *memContactsRepo {
	return &memContactsRepo{contacts: map[int64]*models.Contact{}, nextID: 1}
}

func (f *memContactsRepo) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	c.ID = f.nextID
	f.nextID++
	f.contacts[c.ID] = c
	return c, nil
}

func (f *memContactsRepo) GetByID(ctx context.Context, userID int64, id int64) (*models.Contact, error) {
	c, ok := f.contacts[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

func (f *memContactsRepo) List(ctx context.Context, userID int64, filter contactsrepo.ListFilter) ([]*models.Contact, error) {
	result := []*models.Contact{}
	for _, c := range f.contacts {
		if c.UserID != userID {
			continue
		}
		if filter.FirstName != "" && !strings.Contains(strings.ToLower(c.FirstName), strings.ToLower(filter.FirstName)) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (f *memContactsRepo) Update(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	existing, ok := f.contacts[c.ID]
	if !ok || existing.UserID != c.UserID {
		return nil, common.ErrorNotFound
	}
	f.contacts[c.ID] = c
	return c, nil
}

func (f *memContactsRepo) Delete(ctx context.Context, userID int64, id int64) error {
	c, ok := f.contacts[id]
	if !ok || c.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.contacts, id)
	return nil
}

func (f *memContactsRepo) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]*models.Contact, error) {
	return f.List(ctx, userID, contactsrepo.ListFilter{})
}

type memRepoManager struct {
	u *memUsersRepo
	c *memContactsRepo
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *memRepoManager) Contacts(db dbx.DBTX) contactsrepo.Repository {
	return m.c
}

type noopMailer struct{}

func (noopMailer) SendConfirmation(ctx context.Context, to, username, token string) error {
	return nil
}
func (noopMailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	return nil
}

// --- harness ---

type testEnv struct {
	server *Server
	users  *memUsersRepo
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"

	users := newMemUsersRepo()
	rm := &memRepoManager{u: users, c: newMemContactsRepo()}
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	userCache := cache.NewUserCache(cache.NewMemoryCache(), cfg.AccessTokenValidityDuration)

	authService, err := services.NewAuthService(db, rm, userCache, noopMailer{}, logger, cfg)
	if err != nil {
		t.Fatalf("NewAuthService error: %v", err)
	}
	contactService := services.NewContactService(db, rm)
	avatarService := services.NewAvatarService(db, rm, userCache, logger, cfg)

	return &testEnv{
		server: NewServer(":0", authService, contactService, avatarService, logger),
		users:  users,
		cfg:    cfg,
	}
}

func (env *testEnv) addUser(t *testing.T, username, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Confirmed:    true,
		CreatedAt:    time.Now(),
	}
	env.users.add(u)
	return u
}

func (env *testEnv) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return env.do(t, method, path, body, headers)
}

func (env *testEnv) login(t *testing.T, username, password string) *tokenResponse {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	rec := env.do(t, http.MethodPost, "/api/auth/login", []byte(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	tokens := &tokenResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), tokens); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return tokens
}

func authHeader(tokens *tokenResponse) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tokens.AccessToken}
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error: %v (%s)", err, rec.Body.String())
	}
	if d, ok := payload["detail"]; ok {
		return d
	}
	return payload["message"]
}

// --- tests ---

func TestRegister_CreatedAndConflicts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/auth/register",
		registerRequest{Username: "alice", Email: "alice@x.com", Password: "pw123456"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var user userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if user.Username != "alice" || user.Role != models.RoleUser || user.Confirmed {
		t.Fatalf("unexpected user: %+v", user)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/auth/register",
		registerRequest{Username: "other", Email: "alice@x.com", Password: "pw"}, nil)
	if rec.Code != http.StatusConflict || decodeDetail(t, rec) != "Email is used" {
		t.Fatalf("expected 409 Email is used, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.doJSON(t, http.MethodPost, "/api/auth/register",
		registerRequest{Username: "alice", Email: "other@x.com", Password: "pw"}, nil)
	if rec.Code != http.StatusConflict || decodeDetail(t, rec) != "Name is used" {
		t.Fatalf("expected 409 Name is used, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLogin_FormEncoded(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)

	tokens := env.login(t, "alice", "pw123456")
	if tokens.TokenType != "bearer" {
		t.Fatalf("unexpected token_type: %s", tokens.TokenType)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("empty token pair")
	}
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	unconfirmed := env.addUser(t, "bob", "bob@x.com", "pw123456", models.RoleUser)
	unconfirmed.Confirmed = false

	form := url.Values{"username": {"alice"}, "password": {"bad"}}
	rec := env.do(t, http.MethodPost, "/api/auth/login", []byte(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if rec.Code != http.StatusUnauthorized || decodeDetail(t, rec) != "Invalid credentials" {
		t.Fatalf("expected 401 Invalid credentials, got %d %s", rec.Code, rec.Body.String())
	}

	form = url.Values{"username": {"ghost"}, "password": {"pw"}}
	rec = env.do(t, http.MethodPost, "/api/auth/login", []byte(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if rec.Code != http.StatusUnauthorized || decodeDetail(t, rec) != "Invalid credentials" {
		t.Fatalf("expected identical 401 for unknown user, got %d %s", rec.Code, rec.Body.String())
	}

	form = url.Values{"username": {"bob"}, "password": {"pw123456"}}
	rec = env.do(t, http.MethodPost, "/api/auth/login", []byte(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if rec.Code != http.StatusUnauthorized || decodeDetail(t, rec) != "Email not confirmed" {
		t.Fatalf("expected 401 Email not confirmed, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMe_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)

	rec := env.do(t, http.MethodGet, "/api/users/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	tokens := env.login(t, "alice", "pw123456")
	rec = env.do(t, http.MethodGet, "/api/users/me", nil, authHeader(tokens))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var user userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestMe_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	tokens := env.login(t, "alice", "pw123456")

	var last int
	for i := 0; i < meRateLimit+1; i++ {
		rec := env.do(t, http.MethodGet, "/api/users/me", nil, authHeader(tokens))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d requests, got %d", meRateLimit+1, last)
	}
}

func TestRefreshToken_Flow(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	tokens := env.login(t, "alice", "pw123456")

	rec := env.doJSON(t, http.MethodPost, "/api/auth/refresh-token",
		map[string]string{"refresh_token": tokens.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var refreshed tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if refreshed.RefreshToken != tokens.RefreshToken {
		t.Fatal("refresh token rotated")
	}

	// An access token is not accepted in the refresh slot.
	rec = env.doJSON(t, http.MethodPost, "/api/auth/refresh-token",
		map[string]string{"refresh_token": tokens.AccessToken}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token, got %d", rec.Code)
	}

	// A missing token is a validation error, not an auth error.
	rec = env.doJSON(t, http.MethodPost, "/api/auth/refresh-token",
		map[string]string{}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty body, got %d", rec.Code)
	}
}

func TestConfirmEmail_Endpoint(t *testing.T) {
	env := newTestEnv(t)
	u := env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	u.Confirmed = false

	token, err := auth.GenerateEmailToken("alice@x.com", []byte("k"), jwtMethod(t, env), time.Hour)
	if err != nil {
		t.Fatalf("GenerateEmailToken error: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/auth/confirmed_email/"+token, nil, nil)
	if rec.Code != http.StatusOK || decodeDetail(t, rec) != "Email confirmed" {
		t.Fatalf("expected 200 Email confirmed, got %d %s", rec.Code, rec.Body.String())
	}
	if !u.Confirmed {
		t.Fatal("user not confirmed")
	}

	rec = env.do(t, http.MethodGet, "/api/auth/confirmed_email/"+token, nil, nil)
	if rec.Code != http.StatusOK || decodeDetail(t, rec) != "Your email is already confirmed" {
		t.Fatalf("expected idempotent confirmation, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/auth/confirmed_email/garbage", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad token, got %d", rec.Code)
	}
}

func TestResetPassword_Endpoint(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)

	token, err := auth.GenerateEmailToken("alice@x.com", []byte("k"), jwtMethod(t, env), time.Hour)
	if err != nil {
		t.Fatalf("GenerateEmailToken error: %v", err)
	}

	rec := env.doJSON(t, http.MethodPost, "/api/auth/reset_password?token="+token,
		resetPasswordRequest{Password: "newpassword"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	env.login(t, "alice", "newpassword")

	rec = env.doJSON(t, http.MethodPost, "/api/auth/reset_password?token=garbage",
		resetPasswordRequest{Password: "x"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad token, got %d", rec.Code)
	}
}

func TestAvatar_AdminGate(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	tokens := env.login(t, "alice", "pw123456")

	rec := env.do(t, http.MethodPatch, "/api/users/avatar", nil, authHeader(tokens))
	if rec.Code != http.StatusForbidden || decodeDetail(t, rec) != "Operation forbidden" {
		t.Fatalf("expected 403 Operation forbidden, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestContacts_CRUD(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	env.addUser(t, "bob", "bob@x.com", "pw123456", models.RoleUser)
	aliceTokens := env.login(t, "alice", "pw123456")
	bobTokens := env.login(t, "bob", "pw123456")

	rec := env.doJSON(t, http.MethodPost, "/api/contacts", contactRequest{
		FirstName: "Ann", LastName: "Lee", Email: "ann@x.com",
		Phone: "+371000", Birthday: "1990-05-17",
	}, authHeader(aliceTokens))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var created models.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	path := fmt.Sprintf("/api/contacts/%d", created.ID)

	// The owner sees it, another user does not.
	if rec := env.do(t, http.MethodGet, path, nil, authHeader(aliceTokens)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path, nil, authHeader(bobTokens)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign contact, got %d", rec.Code)
	}

	// Partial update: only the first name is sent, the rest is kept.
	rec = env.doJSON(t, http.MethodPatch, path,
		map[string]string{"first_name": "Anna"}, authHeader(aliceTokens))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var patched models.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if patched.FirstName != "Anna" || patched.LastName != "Lee" || patched.Phone != "+371000" {
		t.Fatalf("partial update lost fields: %+v", patched)
	}

	if rec := env.do(t, http.MethodGet, "/api/contacts?first_name=ann", nil, authHeader(aliceTokens)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 list, got %d", rec.Code)
	} else {
		var list []models.Contact
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if len(list) != 1 || list[0].FirstName != "Anna" {
			t.Fatalf("unexpected list: %+v", list)
		}
	}

	if rec := env.do(t, http.MethodDelete, path, nil, authHeader(bobTokens)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign delete, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, nil, authHeader(aliceTokens)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path, nil, authHeader(aliceTokens)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestContacts_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", "alice@x.com", "pw123456", models.RoleUser)
	tokens := env.login(t, "alice", "pw123456")

	rec := env.doJSON(t, http.MethodPost, "/api/contacts", contactRequest{
		FirstName: "Ann",
	}, authHeader(tokens))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing fields, got %d", rec.Code)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/contacts", contactRequest{
		FirstName: "Ann", LastName: "Lee", Email: "ann@x.com", Birthday: "yesterday",
	}, authHeader(tokens))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad birthday, got %d", rec.Code)
	}

	// A partial update may omit fields but not blank out required ones.
	rec = env.doJSON(t, http.MethodPost, "/api/contacts", contactRequest{
		FirstName: "Ann", LastName: "Lee", Email: "ann@x.com", Birthday: "1990-05-17",
	}, authHeader(tokens))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var created models.Contact
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	rec = env.doJSON(t, http.MethodPatch, fmt.Sprintf("/api/contacts/%d", created.ID),
		map[string]string{"email": ""}, authHeader(tokens))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blanked email, got %d", rec.Code)
	}
}

// jwtMethod resolves the configured signing method for token fixtures.
func jwtMethod(t *testing.T, env *testEnv) jwt.SigningMethod {
	t.Helper()
	m := jwt.GetSigningMethod(env.cfg.JWTAlgorithm)
	if m == nil {
		t.Fatalf("unknown algorithm: %s", env.cfg.JWTAlgorithm)
	}
	return m
}

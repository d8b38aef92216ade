package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clubapi.org/internal/auth"
)

// In-memory implementations of the auth collaborators, enough to drive the
// HTTP surface end to end.
type memUsers struct {
	mu   sync.Mutex
	seq  int
	list []*auth.User
}

func (s *memUsers) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.list {
		if existing.Email == u.Email || existing.Username == u.Username {
			return auth.ErrDuplicateIdentity
		}
	}
	s.seq++
	u.ID = fmt.Sprintf("user-%d", s.seq)
	clone := *u
	s.list = append(s.list, &clone)
	return nil
}

func (s *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	return s.find(func(u *auth.User) bool { return u.ID == id })
}

func (s *memUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	return s.find(func(u *auth.User) bool { return u.Username == username })
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return s.find(func(u *auth.User) bool { return u.Email == email })
}

func (s *memUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.list {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

type memLedger struct {
	mu   sync.Mutex
	seq  int
	rows []*auth.IssuedToken
}

func (l *memLedger) Record(_ context.Context, userID, token string) (*auth.IssuedToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	rec := &auth.IssuedToken{
		ID:     fmt.Sprintf("tok-%d", l.seq),
		UserID: userID,
		Token:  token,
		Kind:   auth.KindBearer,
	}
	l.rows = append(l.rows, rec)
	clone := *rec
	return &clone, nil
}

func (l *memLedger) FindUsable(_ context.Context, token string) (*auth.IssuedToken, error) {
	return l.find(func(rec *auth.IssuedToken) bool { return rec.Token == token && rec.Usable() })
}

func (l *memLedger) FindByToken(_ context.Context, token string) (*auth.IssuedToken, error) {
	return l.find(func(rec *auth.IssuedToken) bool { return rec.Token == token })
}

func (l *memLedger) find(match func(*auth.IssuedToken) bool) (*auth.IssuedToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.rows {
		if match(rec) {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (l *memLedger) RevokeAllForUser(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.rows {
		if rec.UserID == userID && rec.Usable() {
			rec.Revoked = true
			rec.Expired = true
		}
	}
	return nil
}

func (l *memLedger) Revoke(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.rows {
		if rec.ID == id {
			rec.Revoked = true
			rec.Expired = true
			return nil
		}
	}
	return auth.ErrNotFound
}

type apiFixture struct {
	api     *API
	handler http.Handler
	users   *memUsers
	ledger  *memLedger
	now     *time.Time
}

func newTestAPI(t *testing.T) *apiFixture {
	t.Helper()
	now := time.Now().UTC()
	clock := func() time.Time { return now }

	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	codec, err := auth.NewCodec(secret, auth.WithCodecClock(clock))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	users := &memUsers{}
	ledger := &memLedger{}
	svc, err := auth.NewService(users, ledger, codec, auth.WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(svc, ReadyProbe{}, "test")
	return &apiFixture{
		api:     api,
		handler: api.Handler(),
		users:   users,
		ledger:  ledger,
		now:     &now,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range mutate {
		fn(req)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) register(t *testing.T, username, email, password string) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("register returned %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refreshToken" {
			refreshCookie = c
		}
	}
	if body.AccessToken == "" || refreshCookie == nil {
		t.Fatalf("register response missing credentials: %s", rr.Body.String())
	}
	return body.AccessToken, refreshCookie
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// Full credential lifecycle over the wire: register, authenticate, refresh,
// re-login superseding the old token, logout.
func TestCredentialLifecycle(t *testing.T) {
	f := newTestAPI(t)

	access, refreshCookie := f.register(t, "kifu", "kifu@club.org", "opening-theory")

	// The fresh access token authenticates.
	rr := f.do(t, http.MethodGet, "/api/v1/users/me", nil, withBearer(access))
	if rr.Code != http.StatusOK {
		t.Fatalf("users/me with fresh token: %d %s", rr.Code, rr.Body.String())
	}
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode users/me: %v", err)
	}
	if me.Email != "kifu@club.org" || me.Role != "USER" {
		t.Fatalf("unexpected identity: %+v", me)
	}

	// Refresh supersedes the first access token.
	rr = f.do(t, http.MethodPost, "/auth/refresh-token", nil, func(r *http.Request) {
		r.AddCookie(refreshCookie)
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/users/me", nil, withBearer(access))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("superseded token: %d, want 401", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/api/v1/users/me", nil, withBearer(refreshed.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("refreshed token: %d %s", rr.Code, rr.Body.String())
	}

	// Logout kills the current token.
	rr = f.do(t, http.MethodPost, "/auth/logout", nil, withBearer(refreshed.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodGet, "/api/v1/users/me", nil, withBearer(refreshed.AccessToken))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("logged-out token: %d, want 401", rr.Code)
	}
}

func TestLoginSupersedesEarlierSession(t *testing.T) {
	f := newTestAPI(t)
	first, _ := f.register(t, "kifu", "kifu@club.org", "opening-theory")

	rr := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "kifu@club.org",
		"password": "opening-theory",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	var second struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	if rr := f.do(t, http.MethodGet, "/api/v1/users/me", nil, withBearer(first)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("first session after re-login: %d, want 401", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/api/v1/users/me", nil, withBearer(second.AccessToken)); rr.Code != http.StatusOK {
		t.Fatalf("second session: %d", rr.Code)
	}
}

package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/idprint/internal/auth"
	"github.com/geocoder89/idprint/internal/config"
	"github.com/geocoder89/idprint/internal/domain/session"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/http/handlers"
	"github.com/geocoder89/idprint/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *auth.Manager, *memory.UsersRepo) {
	t.Helper()
	r, jwtManager, users, _ := newAuthRouterWithSessions(t)
	return r, jwtManager, users
}

func newAuthRouterWithSessions(t *testing.T) (*gin.Engine, *auth.Manager, *memory.UsersRepo, *memory.RefreshTokensRepo) {
	t.Helper()

	users := memory.NewUsersRepo()
	sessions := memory.NewRefreshTokensRepo()
	jwtManager := auth.NewManager("test-secret", 15*time.Minute, time.Hour)
	h := handlers.NewAuthHandler(users, sessions, jwtManager, config.Config{Env: "test", StartingPoints: 2})

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	return r, jwtManager, users, sessions
}

func postJSON(r http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no refresh cookie set")
	return nil
}

const signupBody = `{"email":"Abebe@Example.com","username":"abebe","phone":"0911223344","password":"secret1"}`

func TestSignUp_IssuesTokensAndStartingPoints(t *testing.T) {
	r, jwtManager, users := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", signupBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := jwtManager.VerifyAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Role != "USER" || claims.Email != "abebe@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	refreshCookie(t, w)

	u, err := users.GetByEmail(t.Context(), "abebe@example.com")
	if err != nil || u.Points != 2 {
		t.Fatalf("expected starting points 2, got %+v err=%v", u, err)
	}

	if dup := postJSON(r, "/auth/signup", signupBody); dup.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: got %d", dup.Code)
	}
}

func TestLogin(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	postJSON(r, "/auth/signup", signupBody)

	if w := postJSON(r, "/auth/login", `{"email":"abebe@example.com","password":"secret1"}`); w.Code != http.StatusOK {
		t.Fatalf("login: got %d body=%s", w.Code, w.Body.String())
	}
	if w := postJSON(r, "/auth/login", `{"email":"abebe@example.com","password":"wrong"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d", w.Code)
	}
	if w := postJSON(r, "/auth/login", `{"email":"ghost@example.com","password":"secret1"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: got %d", w.Code)
	}
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	r, _, _ := newAuthRouter(t)
	first := refreshCookie(t, postJSON(r, "/auth/signup", signupBody))

	w := postJSON(r, "/auth/refresh", "", first)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: got %d body=%s", w.Code, w.Body.String())
	}
	second := refreshCookie(t, w)
	if second.Value == first.Value {
		t.Fatalf("refresh token not rotated")
	}

	if reuse := postJSON(r, "/auth/refresh", "", first); reuse.Code != http.StatusUnauthorized {
		t.Fatalf("reused token: got %d", reuse.Code)
	}

	if out := postJSON(r, "/auth/logout", "", second); out.Code != http.StatusNoContent {
		t.Fatalf("logout: got %d", out.Code)
	}
	if after := postJSON(r, "/auth/refresh", "", second); after.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: got %d", after.Code)
	}
}

func TestRefresh_MissingCookie(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	if w := postJSON(r, "/auth/refresh", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d", w.Code)
	}
}

func TestRefresh_IssuesRoleFromStoredUser(t *testing.T) {
	r, jwtManager, users, sessions := newAuthRouterWithSessions(t)

	u, err := users.Create(t.Context(), user.CreateParams{Email: "demoted@example.com", Username: "demoted", PasswordHash: "x", Role: user.RoleUser})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// token minted while the user was still an admiral
	raw, jti, expiresAt, err := jwtManager.GenerateRefreshToken(u.ID, u.Email, user.RoleAdmiral)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	err = sessions.Create(t.Context(), session.RefreshToken{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: jwtManager.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("store refresh: %v", err)
	}

	w := postJSON(r, "/auth/refresh", "", &http.Cookie{Name: "refresh_token", Value: raw})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := jwtManager.VerifyAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Role != user.RoleUser {
		t.Fatalf("expected stored role %q, got %q", user.RoleUser, claims.Role)
	}
}

func TestRefresh_UnknownUser(t *testing.T) {
	r, jwtManager, _, sessions := newAuthRouterWithSessions(t)

	raw, jti, expiresAt, err := jwtManager.GenerateRefreshToken("deleted-user-id", "gone@example.com", user.RoleAdmiral)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_ = sessions.Create(t.Context(), session.RefreshToken{
		ID:        jti,
		UserID:    "deleted-user-id",
		TokenHash: jwtManager.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})

	if w := postJSON(r, "/auth/refresh", "", &http.Cookie{Name: "refresh_token", Value: raw}); w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d", w.Code)
	}
}

package authhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/storage/memory"
)

const secret = "test-secret"

func newRouter(t *testing.T, users ...auth.User) http.Handler {
	t.Helper()
	store := memory.New(time.Second)
	require.NoError(t, store.WithinTx(context.Background(), func(tx leave.Tx) error {
		for _, u := range users {
			if err := tx.InsertUser(context.Background(), u); err != nil {
				return err
			}
		}
		return nil
	}))
	r := chi.NewRouter()
	NewHandler(store, secret, time.Hour).RegisterRoutes(r)
	return r
}

func user(t *testing.T, id, email, password string, active bool) auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return auth.User{ID: id, Email: email, PasswordHash: hash, Role: auth.RoleHR, Active: active, CreatedAt: time.Now().UTC()}
}

func login(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestLoginIssuesToken(t *testing.T) {
	h := newRouter(t, user(t, "u1", "hr@example.com", "Secret123", true))

	rec, out := login(t, h, `{"email":"HR@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data := out["data"].(map[string]any)
	claims, err := auth.ParseToken(secret, data["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, auth.Principal{UserID: "u1", Role: auth.RoleHR}, claims.Principal())
	assert.Equal(t, "hr@example.com", data["user"].(map[string]any)["email"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newRouter(t,
		user(t, "u1", "hr@example.com", "Secret123", true),
		user(t, "u2", "gone@example.com", "Secret123", false),
	)

	tests := []struct {
		name string
		body string
	}{
		{name: "wrong password", body: `{"email":"hr@example.com","password":"nope"}`},
		{name: "unknown email", body: `{"email":"who@example.com","password":"Secret123"}`},
		{name: "inactive user", body: `{"email":"gone@example.com","password":"Secret123"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := login(t, h, tc.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "invalid_credentials", out["error"].(map[string]any)["code"])
		})
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	h := newRouter(t)

	rec, out := login(t, h, `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", out["error"].(map[string]any)["code"])
}

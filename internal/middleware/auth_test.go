package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwpark/chatbot/backend/internal/auth"
	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

func newAuthedRouter(t *testing.T) (http.Handler, *auth.TokenProvider, *usermodel.User, *usermodel.User) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	users := store.NewUserStore(db)

	ctx := context.Background()
	member := &usermodel.User{Email: "m@example.com", Password: "h", Name: "member", Role: usermodel.RoleMember}
	require.NoError(t, users.Save(ctx, member))
	admin := &usermodel.User{Email: "a@example.com", Password: "h", Name: "admin", Role: usermodel.RoleAdmin}
	require.NoError(t, users.Save(ctx, admin))

	tokens := auth.NewTokenProvider("test-secret", time.Hour)

	echoUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usr, ok := auth.CurrentUser(r.Context())
		if !ok {
			http.Error(w, "no user", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(usr.Email))
	})

	mux := http.NewServeMux()
	mux.Handle("/protected", Auth(tokens, users)(echoUser))
	mux.Handle("/admin", Auth(tokens, users)(RequireAdmin(echoUser)))
	return mux, tokens, member, admin
}

func TestAuthResolvesBearerToken(t *testing.T) {
	router, tokens, member, _ := newAuthedRouter(t)

	token, err := tokens.Generate(member.Email)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, member.Email, rec.Body.String())
}

func TestAuthAcceptsQueryTokenFallback(t *testing.T) {
	router, tokens, member, _ := newAuthedRouter(t)

	token, err := tokens.Generate(member.Email)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	router, _, _, _ := newAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	router, _, _, _ := newAuthedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenForDeletedAccount(t *testing.T) {
	router, tokens, _, _ := newAuthedRouter(t)

	token, err := tokens.Generate("ghost@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminBlocksMembers(t *testing.T) {
	router, tokens, member, admin := newAuthedRouter(t)

	memberToken, err := tokens.Generate(member.Email)
	require.NoError(t, err)
	adminToken, err := tokens.Generate(admin.Email)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

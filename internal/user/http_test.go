package user

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abduss/grimoire/internal/security"
	"github.com/abduss/grimoire/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	require.NoError(t, RegisterValidators(v))

	users, _ := newTestStore(t)
	router := gin.New()
	api := router.Group("/v1")
	RegisterRoutes(api, api.Group("/"), users)
	return router, users
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateUserEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "frodo",
		"email":    "Frodo@Example.com",
		"password": "Secur3P@ss",
		"name":     "Frodo Baggins",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "frodo", got["username"])
	assert.Equal(t, "frodo@example.com", got["email"])
	assert.Equal(t, true, got["is_active"])
	assert.NotContains(t, got, "hashed_password")
	assert.NotContains(t, got, "PasswordDigest")
}

func TestCreateUserConflictsAreBadRequests(t *testing.T) {
	router, users := newTestRouter(t)
	mustCreate(t, users, "frodo")

	rr := doJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "frodo",
		"email":    "new@example.com",
		"password": "Secur3P@ss",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "username already registered")

	rr = doJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "samwise",
		"email":    "frodo@example.com",
		"password": "Secur3P@ss",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email already registered")
}

func TestCreateUserRejectsWeakInput(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "frodo",
		"email":    "frodo@example.com",
		"password": "alllowercase1!",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "uppercase")
}

func TestCreateUserRejectsPasswordOverBcryptLimit(t *testing.T) {
	newTestRouter(t)
	entities, err := store.NewMemory(Schema)
	require.NoError(t, err)
	users := NewStore(entities, security.NewHasher(4))
	router := gin.New()
	api := router.Group("/v1")
	RegisterRoutes(api, api.Group("/"), users)

	// 72 characters, 140 bytes.
	password := "Aa1!" + strings.Repeat("éè", 34)
	rr := doJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "frodo",
		"email":    "frodo@example.com",
		"password": password,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "72 bytes")

	_, err = users.Create(context.Background(), CreateInput{Username: "frodo", Email: "frodo@example.com", Password: password})
	require.ErrorIs(t, err, security.ErrPasswordTooLong)

	rr = doJSON(t, router, http.MethodPost, "/v1/users", gin.H{
		"username": "frodo",
		"email":    "frodo@example.com",
		"password": "Secur3P@ss",
	})
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestWriteErrorMapsPasswordTooLong(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)

	h := &httpHandler{}
	h.writeError(c, fmt.Errorf("hash password: %w", security.ErrPasswordTooLong))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUpdateAndDeactivateEndpoints(t *testing.T) {
	router, users := newTestRouter(t)
	frodo := mustCreate(t, users, "frodo")
	mustCreate(t, users, "samwise")

	rr := doJSON(t, router, http.MethodGet, "/v1/users/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/v1/users/42", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/v1/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPatch, "/v1/users/1", gin.H{"username": "samwise"})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "username owned by another user")

	rr = doJSON(t, router, http.MethodPatch, "/v1/users/1", gin.H{"username": "frodo", "name": "Mr Underhill"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "Mr Underhill")

	rr = doJSON(t, router, http.MethodDelete, "/v1/users/1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	got, found, err := users.Get(context.Background(), frodo.ID)
	require.NoError(t, err)
	require.True(t, found, "delete is a soft delete")
	assert.False(t, got.IsActive)

	rr = doJSON(t, router, http.MethodDelete, "/v1/users/99", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/v1/users/1/activate", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListUsersEndpoint(t *testing.T) {
	router, users := newTestRouter(t)
	mustCreate(t, users, "frodo")
	sam := mustCreate(t, users, "samwise")
	mustCreate(t, users, "pippin")
	_, _, err := users.DeactivateUser(context.Background(), sam.ID)
	require.NoError(t, err)

	rr := doJSON(t, router, http.MethodGet, "/v1/users?is_active=true&order_by=-username", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Count   int64  `json:"count"`
		Results []User `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Count)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "pippin", resp.Results[0].Username)
	assert.Equal(t, "frodo", resp.Results[1].Username)

	rr = doJSON(t, router, http.MethodGet, "/v1/users?username=frodo,pippin&limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Count)
	assert.Len(t, resp.Results, 1)

	for _, bad := range []string{"?colour=red", "?order_by=shoe_size", "?hashed_password=x", "?is_active=maybe", "?limit=0"} {
		rr = doJSON(t, router, http.MethodGet, "/v1/users"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

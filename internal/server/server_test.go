package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"tally/internal/config"
	"tally/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestApp(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.FriendRelation{},
		&models.Tab{},
		&models.SyncRequest{},
	))

	cfg := &config.Config{
		JWTSecret: "test-secret-used-only-inside-tests",
		Port:      "0",
		Env:       "development",
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupRoutes(app)
	return srv, app
}

// doJSON performs a request against the app and decodes the JSON response
// into a generic map. An empty token skips the Authorization header.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

// doJSONList is doJSON for endpoints returning a JSON array.
func doJSONList(t *testing.T, app *fiber.App, method, path, token string) (int, []map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded []map[string]interface{}
	if len(raw) > 0 && raw[0] == '[' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func registerUser(t *testing.T, app *fiber.App, name, email string) (token string, user map[string]interface{}) {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "super-secret-pw",
	})
	require.Equal(t, http.StatusCreated, status)
	token, _ = body["token"].(string)
	require.NotEmpty(t, token)
	user, _ = body["user"].(map[string]interface{})
	require.NotNil(t, user)
	return token, user
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	_, app := newTestApp(t)

	_, user := registerUser(t, app, "Alice", "alice@example.com")
	assert.Equal(t, "Alice", user["name"])
	assert.NotEmpty(t, user["tag"])
	// Password hash must never leave the server.
	_, leaked := user["password"]
	assert.False(t, leaked)

	status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "super-secret-pw",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuth_RegisterValidation(t *testing.T) {
	_, app := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice", "email": "not-an-email", "password": "super-secret-pw",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	registerUser(t, app, "Alice", "alice@example.com")
	status, _ = doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice Again", "email": "alice@example.com", "password": "super-secret-pw",
	})
	assert.Equal(t, http.StatusConflict, status)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	_, app := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/tabs/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestFriendFlow_OverHTTP(t *testing.T) {
	_, app := newTestApp(t)

	aliceToken, _ := registerUser(t, app, "Alice", "alice@example.com")
	bobToken, bobUser := registerUser(t, app, "Bob", "bob@example.com")
	bobTag := bobUser["tag"].(string)

	status, sent := doJSON(t, app, http.MethodPost, "/api/friends/requests", aliceToken,
		map[string]string{"tag": bobTag})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", sent["status"])

	status, incoming := doJSONList(t, app, http.MethodGet, "/api/friends/requests", bobToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, incoming, 1)
	relationID := int(incoming[0]["id"].(float64))

	status, accepted := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/friends/requests/%d/respond", relationID), bobToken,
		map[string]string{"action": "accept"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", accepted["status"])

	status, friends := doJSONList(t, app, http.MethodGet, "/api/friends/", aliceToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, friends, 1)
}

func TestTabSyncFlow_OverHTTP(t *testing.T) {
	_, app := newTestApp(t)

	aliceToken, _ := registerUser(t, app, "Alice", "alice@example.com")
	bobToken, bobUser := registerUser(t, app, "Bob", "bob@example.com")
	bobID := int(bobUser["id"].(float64))
	bobTag := bobUser["tag"].(string)

	// Establish the friendship first.
	status, _ := doJSON(t, app, http.MethodPost, "/api/friends/requests", aliceToken,
		map[string]string{"tag": bobTag})
	require.Equal(t, http.StatusCreated, status)
	_, incoming := doJSONList(t, app, http.MethodGet, "/api/friends/requests", bobToken)
	require.Len(t, incoming, 1)
	status, _ = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/friends/requests/%d/respond", int(incoming[0]["id"].(float64))), bobToken,
		map[string]string{"action": "accept"})
	require.Equal(t, http.StatusOK, status)

	// Alice records a debt against Bob; the coordinator proposes a mirror.
	status, created := doJSON(t, app, http.MethodPost, "/api/tabs/", aliceToken,
		map[string]interface{}{
			"role":        "creditor",
			"amount":      33.5,
			"description": "takeout",
			"peer_id":     bobID,
		})
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, created["sync_request"])
	tab := created["tab"].(map[string]interface{})
	tabID := int(tab["id"].(float64))
	syncReq := created["sync_request"].(map[string]interface{})
	syncID := int(syncReq["id"].(float64))

	status, pending := doJSONList(t, app, http.MethodGet, "/api/tabs/sync/pending", bobToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pending, 1)

	status, resolved := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/tabs/sync/%d/respond", syncID), bobToken,
		map[string]string{"action": "accept"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", resolved["status"])
	require.NotNil(t, resolved["target_tab_id"])

	// Bob's mirror carries the opposite role.
	status, mirrors := doJSONList(t, app, http.MethodGet, "/api/tabs/", bobToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, mirrors, 1)
	assert.Equal(t, "debtor", mirrors[0]["role"])

	// Deleting the linked tab routes through the protocol.
	status, deletion := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/tabs/%d", tabID), aliceToken, nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "pending_peer_confirmation", deletion["status"])
	delReq := deletion["sync_request"].(map[string]interface{})

	status, _ = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/tabs/sync/%d/respond", int(delReq["id"].(float64))), bobToken,
		map[string]string{"action": "accept"})
	require.Equal(t, http.StatusOK, status)

	status, remaining := doJSONList(t, app, http.MethodGet, "/api/tabs/", aliceToken)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, remaining)
}

func TestTabSettle_LocalTab(t *testing.T) {
	_, app := newTestApp(t)
	token, _ := registerUser(t, app, "Alice", "alice@example.com")

	status, created := doJSON(t, app, http.MethodPost, "/api/tabs/", token,
		map[string]interface{}{
			"role":        "debtor",
			"amount":      12,
			"description": "lunch",
			"peer_name":   "Coworker",
		})
	require.Equal(t, http.StatusCreated, status)
	_, hasSync := created["sync_request"]
	assert.False(t, hasSync)
	tabID := int(created["tab"].(map[string]interface{})["id"].(float64))

	status, settled := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/tabs/%d/settle", tabID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "settled", settled["status"])

	// Settling again is a state violation.
	status, _ = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/tabs/%d/settle", tabID), token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestTab_ParticipantScoping(t *testing.T) {
	_, app := newTestApp(t)
	aliceToken, _ := registerUser(t, app, "Alice", "alice@example.com")
	strangerToken, _ := registerUser(t, app, "Mallory", "mallory@example.com")

	status, created := doJSON(t, app, http.MethodPost, "/api/tabs/", aliceToken,
		map[string]interface{}{"role": "creditor", "amount": 5, "description": "gum"})
	require.Equal(t, http.StatusCreated, status)
	tabID := int(created["tab"].(map[string]interface{})["id"].(float64))

	// A non-participant sees 404, not 403: existence is not leaked.
	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/tabs/%d", tabID), strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/tabs/abc", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUserEndpoints(t *testing.T) {
	_, app := newTestApp(t)
	token, user := registerUser(t, app, "Alice", "alice@example.com")

	status, me := doJSON(t, app, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, user["tag"], me["tag"])

	status, stats := doJSON(t, app, http.MethodGet, "/api/users/me/stats", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, stats["active_tabs"])

	status, found := doJSON(t, app, http.MethodGet,
		"/api/users/lookup?tag="+url.QueryEscape(user["tag"].(string)), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, user["tag"], found["tag"])
	// Lookup exposes public identity only.
	_, hasEmail := found["email"]
	assert.False(t, hasEmail)

	status, _ = doJSON(t, app, http.MethodGet, "/api/users/lookup?tag=Nobody%239999", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthEndpoints(t *testing.T) {
	_, app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])

	// Without a broker, readiness still passes; redis reports unavailable.
	status, body = doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

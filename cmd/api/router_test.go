package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automax/internal/config"
	"automax/internal/database"
	"automax/internal/domain/upload"
	"automax/internal/mailer"
	jwtsvc "automax/internal/pkg/jwt"
	"automax/internal/storage"
)

const testSecret = "test_secret_key_32_characters_min"

type testServer struct {
	router *gin.Engine
	jwt    *jwtsvc.Service
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	base := t.TempDir()

	cfg := &config.Config{
		BaseDir:      base,
		SecretKey:    testSecret,
		Debug:        true,
		AllowedHosts: []string{"example.com"},
		SessionTTL:   time.Hour,
		Static: config.StaticConfig{
			StaticURL:   "/static/",
			StaticDirs:  []string{filepath.Join(base, "static")},
			MediaURL:    "/media/",
			MediaRoot:   filepath.Join(base, "media"),
			MaxUploadSz: 1 << 20,
		},
		Storage: config.StorageConfig{Provider: config.StorageLocal},
	}
	require.NoError(t, os.MkdirAll(filepath.Join(base, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "static", "site.css"), []byte("body{}"), 0o644))

	db, err := database.Connect(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.MigrateModels(db, &upload.Upload{}))

	store, err := storage.NewLocal(cfg.Static.MediaRoot, cfg.Static.MediaURL)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	r := newRouter(cfg, log, db, store, mailer.NewConsoleMailer(log))
	return &testServer{router: r, jwt: jwtsvc.New(testSecret, time.Hour)}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) uploadRequest(t *testing.T, userID int64, target, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID > 0 {
		token, err := s.jwt.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRouter_Health(t *testing.T) {
	s := setupServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_DisallowedHost(t *testing.T) {
	s := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Host = "attacker.test"
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestRouter_Static(t *testing.T) {
	s := setupServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())
}

func TestRouter_UploadFlow(t *testing.T) {
	s := setupServer(t)
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 60)...)

	// no session
	w := s.do(s.uploadRequest(t, 0, "/api/v1/users/me/photo", "profile.jpg", jpeg))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(s.uploadRequest(t, 42, "/api/v1/users/me/photo", "profile.jpg", jpeg))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	var created struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "user_42/profile.jpg", created.Path)
	assert.Equal(t, "/media/user_42/profile.jpg", created.URL)

	w = s.do(httptest.NewRequest(http.MethodGet, created.URL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jpeg, w.Body.Bytes())

	// same name again lands next to the first file
	w = s.do(s.uploadRequest(t, 42, "/api/v1/uploads", "profile.jpg", jpeg))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Regexp(t, `^user_42/profile_[A-Za-z0-9]{7}\.jpg$`, created.Path)
}

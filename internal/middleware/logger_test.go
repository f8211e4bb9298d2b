package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendMail(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func panicRouter(log logrus.FieldLogger, rep ErrorReporting) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorLogger(log, rep))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func TestErrorLogger_PanicMailsAdmins(t *testing.T) {
	log, hook := test.NewNullLogger()
	m := new(mockMailer)
	admins := []string{"ops@example.com"}
	m.On("SendMail", mock.Anything, admins, "[AutoMax] ERROR (panic): GET /boom", mock.AnythingOfType("string")).Return(nil)

	w := httptest.NewRecorder()
	panicRouter(log, ErrorReporting{Mailer: m, Admins: admins}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
	m.AssertExpectations(t)

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "panic", hook.Entries[0].Message)
	assert.Equal(t, logrus.ErrorLevel, hook.Entries[0].Level)
}

func TestErrorLogger_PanicDebugShowsDetails(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := new(mockMailer)

	w := httptest.NewRecorder()
	panicRouter(log, ErrorReporting{Debug: true, Mailer: m, Admins: []string{"ops@example.com"}}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "kaboom")
	m.AssertNotCalled(t, "SendMail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestErrorLogger_LogsServerErrors(t *testing.T) {
	log, hook := test.NewNullLogger()

	w := httptest.NewRecorder()
	panicRouter(log, ErrorReporting{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "http_error", hook.LastEntry().Message)
	assert.Equal(t, http.StatusBadGateway, hook.LastEntry().Data["status"])
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "/ok", hook.LastEntry().Data["path"])

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "abc-123", hook.LastEntry().Data["request_id"])
}

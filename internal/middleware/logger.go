package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"automax/internal/mailer"
	"automax/internal/pkg/response"
)

const (
	requestIDHeader  = "X-Request-ID"
	adminMailTimeout = 10 * time.Second
)

// ErrorReporting controls what ErrorLogger does with a panic besides
// logging it.
type ErrorReporting struct {
	Debug  bool
	Mailer mailer.Mailer
	Admins []string
}

// ErrorLogger logs failed requests and recovers from panics. Outside debug
// mode panics are mailed to the admins and the response carries no details.
func ErrorLogger(log logrus.FieldLogger, rep ErrorReporting) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				stack := debug.Stack()
				requestFields(log, c, start).WithField("stack", string(stack)).WithError(err).Error("panic")

				if rep.Debug {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"success": false,
						"error": gin.H{
							"code":    response.CodeInternal,
							"message": "Internal Server Error (Panic)",
							"details": err.Error(),
							"stack":   string(stack),
						},
					})
					return
				}

				mailPanic(c, log, rep, err, stack)
				response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "Internal Server Error")
				return
			}

			if len(c.Errors) == 0 {
				if c.Writer.Status() >= http.StatusInternalServerError {
					requestFields(log, c, start).Error("http_error")
				}
				return
			}

			for _, e := range c.Errors {
				entry := requestFields(log, c, start).WithField("type", fmt.Sprintf("%v", e.Type))
				if e.Meta != nil {
					entry = entry.WithField("meta", e.Meta)
				}
				entry.WithError(e.Err).Error("request_error")
			}
		}()

		c.Next()
	}
}

func mailPanic(c *gin.Context, log logrus.FieldLogger, rep ErrorReporting, err error, stack []byte) {
	if rep.Mailer == nil || len(rep.Admins) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), adminMailTimeout)
	defer cancel()

	subject := fmt.Sprintf("ERROR (panic): %s %s", c.Request.Method, c.Request.URL.Path)
	body := fmt.Sprintf("request_id=%s client_ip=%s user_id=%d\n\n%v\n\n%s",
		requestID(c), c.ClientIP(), c.GetInt64("user_id"), err, stack)
	if mailErr := mailer.MailAdmins(ctx, rep.Mailer, rep.Admins, subject, body); mailErr != nil {
		log.WithError(mailErr).Warn("could not mail admins about panic")
	}
}

// RequestLogger assigns a request id and logs one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(requestIDHeader, id)
		}
		c.Header(requestIDHeader, id)

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"client_ip":  c.ClientIP(),
			"request_id": id,
			"latency":    time.Since(start).String(),
			"size":       c.Writer.Size(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

func requestFields(log logrus.FieldLogger, c *gin.Context, start time.Time) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"status":     c.Writer.Status(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"client_ip":  c.ClientIP(),
		"user_id":    c.GetInt64("user_id"),
		"request_id": requestID(c),
		"latency":    time.Since(start).String(),
	})
}

func requestID(c *gin.Context) string {
	return c.GetHeader(requestIDHeader)
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextAuditLog = "audit_log"
	HeaderRequestID = "X-Request-ID"
)

// RequestRecord is one audited HTTP request.
type RequestRecord struct {
	ID           string
	Method       string
	Path         string
	Caller       string
	IP           string
	UserAgent    string
	StatusCode   int
	LatencyMs    int64
	RequestBody  string
	ResponseBody string
	Context      map[string]interface{}
}

// bodyLogWriter 包装 ResponseWriter 以捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// AuditMiddleware logs every mutating request with its (redacted) bodies.
// Reads are only counted by the metrics middleware.
func AuditMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)

		// 读取请求体并写回，供后续 Bind 使用
		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		entry := &RequestRecord{
			ID:        reqID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Context:   make(map[string]interface{}),
		}
		c.Set(ContextAuditLog, entry)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		if caller, ok := CallerFrom(c); ok {
			entry.Caller = caller.Hex()
		}
		entry.RequestBody = redactAuditBody(reqBodyBytes)
		entry.StatusCode = c.Writer.Status()
		entry.ResponseBody = redactAuditBody(blw.body.Bytes())
		entry.LatencyMs = time.Since(start).Milliseconds()

		log.Info("request audited",
			"request_id", entry.ID,
			"method", entry.Method,
			"path", entry.Path,
			"caller", entry.Caller,
			"ip", entry.IP,
			"user_agent", entry.UserAgent,
			"status", entry.StatusCode,
			"latency_ms", entry.LatencyMs,
			"request_body", entry.RequestBody,
			"response_body", entry.ResponseBody,
			"context", entry.Context)
	}
}

// AddAuditContext 辅助函数：允许 Handler 向审计日志添加业务上下文
func AddAuditContext(c *gin.Context, key string, value interface{}) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if entry, ok := val.(*RequestRecord); ok {
			entry.Context[key] = value
		}
	}
}

func redactAuditBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "private_key",
		"signature",
		"sig",
		"lever_exchange_data",
		"delever_exchange_data":
		return true
	default:
		return false
	}
}

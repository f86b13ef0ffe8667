package middleware

import (
	"bytes"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/storefront/pkg/ctxval"
)

const defaultMaxLoggedBody = 1024

// LogRequestConfig configures LogRequest.
type LogRequestConfig struct {
	Logger  Logger
	Skipper Skipper
	// Generation reports the current catalog generation. When set, the line
	// carries the generation the request was answered under.
	Generation func() int64
	// Commands are the methods whose JSON request bodies are logged.
	// Defaults to PUT, POST and DELETE.
	Commands []string
	// MaxBody truncates logged request bodies.
	MaxBody int
}

// LogRequest writes one line per control request: the route it matched, the
// generation the client sent and the one it was answered under, the command
// body for writes and the handler error for failures.
func LogRequest(config LogRequestConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		panic("Logger is required to use LogRequest")
	}
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.Commands == nil {
		config.Commands = []string{http.MethodPut, http.MethodPost, http.MethodDelete}
	}
	if config.MaxBody <= 0 {
		config.MaxBody = defaultMaxLoggedBody
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			start := time.Now()
			req := c.Request()

			var body []byte
			if slices.Contains(config.Commands, req.Method) && isJSON(req.Header.Get(echo.HeaderContentType)) {
				body, _ = io.ReadAll(req.Body)
				req.Body = io.NopCloser(bytes.NewReader(body))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			res := c.Response()

			args := make([]any, 0, 24)
			args = append(args,
				"status", res.Status,
				"method", req.Method,
				"route", c.Path(),
				"uri", req.RequestURI,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			if sent := req.Header.Get(XStoreGeneration); sent != "" {
				args = append(args, "client_generation", sent)
			}
			if config.Generation != nil {
				args = append(args, "generation", config.Generation())
			}
			if names := c.ParamNames(); len(names) > 0 {
				params := make(map[string]string, len(names))
				for _, name := range names {
					params[name] = c.Param(name)
				}
				args = append(args, "params", params)
			}
			if cmd := commandBody(body, config.MaxBody); cmd != nil {
				args = append(args, "command", cmd)
			}
			if fields := ctxval.Fields(req.Context()); len(fields) > 0 {
				args = append(args, fields...)
			} else {
				args = append(args, "request_id", GetRequestID(c))
			}
			if err != nil {
				args = append(args, "error", err.Error())
			}

			switch {
			case res.Status >= 500:
				config.Logger.Errorw("control request", args...)
			case res.Status >= 400:
				config.Logger.Warnw("control request", args...)
			default:
				config.Logger.Infow("control request", args...)
			}
			return err
		}
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, echo.MIMEApplicationJSON)
}

// commandBody is body as raw JSON, or a truncated string when it is too long
// or not valid JSON.
func commandBody(body []byte, limit int) any {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if len(body) <= limit && json.Valid(body) {
		return json.RawMessage(body)
	}
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/dkoleva/inkwell/internal/auth"
	"github.com/dkoleva/inkwell/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// AuthTokenHeader carries the admin session token. A non-standard header,
// so browsers send a preflight/OPTIONS request first:
// https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS#preflighted_requests
const AuthTokenHeader = "X-INKWELL-TOKEN"

type AuthMiddlewareHandler struct {
	loginChecker auth.Checker
	publicPaths  map[string]bool
}

func NewAuthMiddlewareHandler(loginChecker auth.Checker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker: loginChecker,
		publicPaths: map[string]bool{
			// misc handler:
			"/":        true,
			"/version": true,

			// login-logout:
			"/a/login":  true,
			"/a/logout": true,

			// search handler:
			"/api/search": true,
		},
	}
}

func (h *AuthMiddlewareHandler) requestIsPublic(r *http.Request) bool {
	path := r.URL.Path
	if h.publicPaths[path] {
		return true
	}

	// reading posts is public; draft visibility is the handler's call
	if r.Method == http.MethodGet && (path == "/api/posts" || strings.HasPrefix(path, "/api/posts/")) {
		return true
	}

	// per-post comments: anyone can read a partition and post a comment.
	// The exact /api/comments path (full mapping) and deletes stay behind
	// the token check.
	if strings.HasPrefix(path, "/api/comments/") &&
		(r.Method == http.MethodGet || r.Method == http.MethodPost) {
		return true
	}

	return false
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.requestIsPublic(r) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := r.Header.Get(AuthTokenHeader)
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			isLogged, err := h.loginChecker.IsLogged(ctx, authToken)
			if err != nil {
				log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "check-logged-err")
				span.RecordError(err)
				return
			}
			if !isLogged {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "not-logged")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}

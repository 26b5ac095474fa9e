package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// ContextKeyUserID is the context key for storing the session user id.
const ContextKeyUserID = "user_id"

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionMiddleware resolves the session from the session cookie or a
// bearer token. Requests without a valid session get a fresh guest user
// and a session cookie, mirroring a browser session.
func SessionMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := resolveSession(authService, c.Writer, c.Request, logger)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		c.Set(ContextKeyUserID, uid)
		c.Next()
	}
}

// resolveSession returns the user behind the request. When there is no
// valid session a guest is created and its cookie is set on w, so it must
// run before anything is written.
func resolveSession(authService *auth.Service, w http.ResponseWriter, r *http.Request, logger *zerolog.Logger) (string, error) {
	ctx := r.Context()

	if token := sessionToken(r); token != "" {
		user, err := authService.Authenticate(ctx, token)
		if err == nil {
			return user.ID, nil
		}
		logger.Debug().Err(err).Msg("ignoring invalid session token")
	}

	token, user, err := authService.CreateGuestUser(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create guest session")
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     proto.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Info().Str("user_id", user.ID).Msg("guest session created")
	return user.ID, nil
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(proto.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

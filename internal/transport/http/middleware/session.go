package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rice-quality-analyzer/internal/session"
	"rice-quality-analyzer/internal/transport/http/response"
)

const ContextSessionKey = "session_state"

// Session resolves the caller's state from the signed cookie and stores it in the
// gin context. Handlers that mutate the state save it through the manager.
func Session(manager *session.Manager, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(manager.CookieName())
		state, issued, err := manager.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Printf("resolve session failed: %v", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session unavailable")
			c.Abort()
			return
		}

		if issued {
			signed, err := manager.Token(state)
			if err != nil {
				log.Printf("sign session token failed: %v", err)
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "session unavailable")
				c.Abort()
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			// MaxAge 0 keeps the cookie for the browser session only.
			c.SetCookie(manager.CookieName(), signed, 0, "/", "", secureCookie, true)
		}

		c.Set(ContextSessionKey, state)
		c.Next()
	}
}

// State returns the session state installed by Session.
func State(c *gin.Context) (*session.State, bool) {
	v, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	state, ok := v.(*session.State)
	return state, ok
}

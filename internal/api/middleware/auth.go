package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kernelworks/kernelbot/internal/api"
)

type contextKey string

const CallerAppIDKey contextKey = "caller_app_id"

// botFrameworkIssuers are the token issuers the channel service uses.
var botFrameworkIssuers = []string{
	"https://api.botframework.com",
	"https://sts.windows.net/d6d49420-f39b-4df7-a1dc-d59a935871db/",
	"https://login.microsoftonline.com/d6d49420-f39b-4df7-a1dc-d59a935871db/v2.0",
}

// AdminKeyAuth guards the admin API with a static bearer key. An empty key
// means the operator never configured one, so the admin surface stays
// closed rather than open.
func AdminKeyAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				api.Error(w, http.StatusUnauthorized, "admin api key not configured")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(adminKey)) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid admin api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ChannelAuth checks the bearer token the channel service attaches to
// incoming activities. Claims are validated against the bot's app ID and
// the known channel issuers. When disabled (local emulator development)
// requests pass through untouched.
func ChannelAuth(appID string, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			claims := jwt.MapClaims{}
			if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid channel authorization token")
				return
			}

			if !validChannelClaims(claims, appID) {
				api.Error(w, http.StatusUnauthorized, "invalid channel authorization token")
				return
			}

			ctx := context.WithValue(r.Context(), CallerAppIDKey, appID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerAppID returns the authenticated caller app ID from context.
func GetCallerAppID(ctx context.Context) string {
	appID, _ := ctx.Value(CallerAppIDKey).(string)
	return appID
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

func validChannelClaims(claims jwt.MapClaims, appID string) bool {
	audience, err := claims.GetAudience()
	if err != nil {
		return false
	}
	audienceOK := false
	for _, aud := range audience {
		if aud == appID {
			audienceOK = true
			break
		}
	}
	if !audienceOK {
		return false
	}

	issuer, err := claims.GetIssuer()
	if err != nil {
		return false
	}
	for _, known := range botFrameworkIssuers {
		if issuer == known {
			return true
		}
	}
	return false
}

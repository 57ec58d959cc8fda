package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the basic-auth username for admin routes.
const AdminUser = "admin"

// AdminAuth guards admin routes with HTTP basic auth checked against a bcrypt hash.
// An empty hash locks every admin route.
// PRE: passwordHash is empty or a bcrypt hash
// POST: next runs only for requests carrying the admin credentials
func AdminAuth(passwordHash string) func(http.Handler) http.Handler {
	hash := []byte(passwordHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || len(hash) == 0 || !checkAdmin(hash, user, pass) {
				if ok {
					slog.Warn("security_event", "event", "admin_auth_failed", "ip", ClientIP(r), "path", r.URL.Path)
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="gather admin", charset="UTF-8"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkAdmin(hash []byte, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) == 1
	passOK := bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
	return userOK && passOK
}

package app

import (
	"net/http"

	"github.com/anef/pdfcp/internal/rest"
	"github.com/anef/pdfcp/pkg/demo"
	"github.com/anef/pdfcp/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	userIdHeader    = "X-User-Id"
	userEmailHeader = "X-User-Email"
	userRoleHeader  = "X-User-Role"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(UserMiddleware)
	r.Use(DemoGateMiddleware(deps.DemoGate))
}

// UserMiddleware puts the identity forwarded by the authentication proxy into the request context.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if id := req.Header.Get(userIdHeader); id != "" {
			u := user.User{
				Id:    id,
				Email: req.Header.Get(userEmailHeader),
				Role:  user.ParseRole(req.Header.Get(userRoleHeader)),
			}
			log.Tracef("request made by %s (%s)", u.Id, u.Role)
			ctx = user.WithUser(ctx, u)
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// DemoGateMiddleware refuses requests from the demo ADMIN and DG identities while they are disabled.
// The status endpoint stays reachable so the front-end can hide the accounts.
func DemoGateMiddleware(gate demo.Gate) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Path == "/api/demo/status" {
				next.ServeHTTP(w, req)
				return
			}
			u, err := user.CurrentUser(req.Context())
			if err == nil && gate.IsBlocked(u.Id, u.Email) {
				log.Debugf("refusing request from disabled demo account %s", u.Id)
				rest.WriteError(w, http.StatusForbidden, rest.ErrorResponse{Error: "demo account disabled"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

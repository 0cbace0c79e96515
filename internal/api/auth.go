package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// basicAuth checks credentials on operations that declare a security
// requirement. Browsers cannot set headers on EventSource, so the auth query
// parameter (base64 user:password) is accepted as well.
func (s *Server) basicAuth(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, ok := credentials(ctx)
		if !ok {
			s.unauthorized(ctx, "Authentication required")
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !userOK || !passOK {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}
		next(ctx)
	}
}

func credentials(ctx huma.Context) (string, string, bool) {
	header := ctx.Header("Authorization")
	if header == "" {
		if q := ctx.Query("auth"); q != "" {
			header = "Basic " + q
		}
	}
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}
	r := http.Request{Header: http.Header{"Authorization": {header}}}
	return r.BasicAuth()
}

func (s *Server) unauthorized(ctx huma.Context, msg string) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="framereactor"`)
	_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
}

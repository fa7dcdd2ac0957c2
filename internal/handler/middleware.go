package handler

import (
	"context"
	"net/http"
	"slices"
)

// DefaultOrigins are the browser origins allowed by CORS
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// CORS allows the DefaultOrigins with credentials
func CORS(next http.Handler) http.Handler {
	return AllowOrigins(DefaultOrigins...)(next)
}

// AllowOrigins returns a CORS middleware for origins. "*" allows any origin.
func AllowOrigins(origins ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tokenKey struct{}

func withToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

// token returns the bearer token accepted by requireToken
func token(r *http.Request) string {
	tok, _ := r.Context().Value(tokenKey{}).(string)
	return tok
}

package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/standardbeagle/wsd/internal/debug"
)

const (
	sessionName = "wsd_session"
	nonceKey    = "nonce"
	// NonceField is the form field and NonceHeader the header carrying the session nonce
	NonceField  = "_wsd_nonce"
	NonceHeader = "X-WSD-Nonce"
	tokenCookie = "wsd_token"
)

// Denial messages
const (
	MsgInsufficientPermissions = "Insufficient permissions."
	MsgPermissionDenied        = "Permission denied."
	MsgNonceExpired            = "The link you followed has expired."
	MsgNonceFailed             = "Security check failed."
)

type denyFunc func(w http.ResponseWriter, capability bool)

func denyText(w http.ResponseWriter, capability bool) {
	msg := MsgNonceExpired
	if capability {
		msg = MsgInsufficientPermissions
	}
	http.Error(w, msg, http.StatusForbidden)
}

func denyJSON(w http.ResponseWriter, capability bool) {
	msg := MsgNonceFailed
	if capability {
		msg = MsgPermissionDenied
	}
	writeJSON(w, http.StatusForbidden, ajaxResponse{Success: false, Data: messageData{Message: msg}})
}

// requireCapability checks the admin token when one is configured. The token
// may come as a bearer header, the token cookie, or a ?token= query that then
// sets the cookie.
func (s *AdminServer) requireCapability(deny denyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := s.cfg.Server.AdminToken
			if want == "" {
				next.ServeHTTP(w, r)
				return
			}

			if q := r.URL.Query().Get("token"); q != "" && tokenMatches(q, want) {
				http.SetCookie(w, &http.Cookie{
					Name:     tokenCookie,
					Value:    q,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				next.ServeHTTP(w, r)
				return
			}
			if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tokenMatches(bearer, want) {
				next.ServeHTTP(w, r)
				return
			}
			if c, err := r.Cookie(tokenCookie); err == nil && tokenMatches(c.Value, want) {
				next.ServeHTTP(w, r)
				return
			}

			debug.LogServer("capability check failed for %s %s\n", r.Method, r.URL.Path)
			deny(w, true)
		})
	}
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireNonce rejects requests whose nonce does not match the session's
func (s *AdminServer) requireNonce(deny denyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(NonceHeader)
			if got == "" {
				got = r.FormValue(NonceField)
			}

			session, err := s.sessions.Get(r, sessionName)
			want, _ := session.Values[nonceKey].(string)
			if err != nil || want == "" || got == "" || !tokenMatches(got, want) {
				debug.LogServer("nonce check failed for %s %s\n", r.Method, r.URL.Path)
				deny(w, false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// nonce returns the session's nonce, creating and saving one if needed.
// It must run before anything is written to w.
func (s *AdminServer) nonce(w http.ResponseWriter, r *http.Request) (string, error) {
	// a cookie signed with an old secret decodes with an error but still yields a fresh session
	session, _ := s.sessions.Get(r, sessionName)
	if n, ok := session.Values[nonceKey].(string); ok && n != "" {
		return n, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	n := hex.EncodeToString(buf)
	session.Values[nonceKey] = n
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.LogServer("failed to write response: %v\n", err)
	}
}

package server

import (
	"net/http"

	"mcpaggregator/internal/connmgr"
	"mcpaggregator/pkg/logging"
)

// oauthCallbackHandler completes a pending upstream OAuth authorization-code
// flow identified by the "state" query parameter, exchanging "code" for a
// token and reconnecting the upstream.
func oauthCallbackHandler(manager *connmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			logging.Warn("server", "oauth callback: upstream denied authorization: %s", errParam)
			http.Error(w, "authorization denied: "+errParam, http.StatusBadRequest)
			return
		}
		if state == "" || code == "" {
			http.Error(w, "missing state or code", http.StatusBadRequest)
			return
		}

		if err := manager.CompleteAuthorization(r.Context(), state, code); err != nil {
			logging.Warn("server", "oauth callback failed: %v", err)
			http.Error(w, "authorization failed: "+err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><p>Authorization complete. You may close this window.</p></body></html>"))
	}
}

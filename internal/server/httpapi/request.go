package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/winds-n/member-api/internal/server/accounts"
)

// sessionFromRequest reads the session triple from the form body. The client
// posts it as a nested object, which the urlencoded encoding flattens into
// bracketed keys; bare keys are accepted as a fallback for direct API use.
func sessionFromRequest(r *http.Request) accounts.Session {
	get := func(nested, flat string) string {
		if v := r.PostFormValue(nested); v != "" {
			return v
		}
		return r.PostFormValue(flat)
	}

	return accounts.Session{
		UserID:      get("session[userid]", "userid"),
		ClientID:    get("session[clientid]", "clientid"),
		ClientToken: get("session[clientToken]", "clientToken"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(context.Background(), "writing response", "err", err)
	}
}

func (s *Server) writeStatusFalse(w http.ResponseWriter) {
	s.writeJSON(w, map[string]any{"status": false})
}

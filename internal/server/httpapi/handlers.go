package httpapi

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/winds-n/member-api/internal/common"
	"github.com/winds-n/member-api/internal/server/accounts"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*$`)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.siteURL, http.StatusMovedPermanently)
}

// handleAddUser registers a new account. The request must carry the approval
// key; its digest is compared against the configured value before the store
// is touched at all.
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	userid := r.PostFormValue("userid")
	passwd := r.PostFormValue("passwd")
	key := r.PostFormValue("key")
	clientID := r.PostFormValue("clientid")
	agent := r.PostFormValue("useragent")

	if userid == "" || passwd == "" {
		s.writeStatusFalse(w)
		return
	}
	if s.hasher.Hash(key) != s.registerKeyDigest {
		s.logger.Info(r.Context(), "adduser rejected: bad approval key", "userid", userid)
		s.writeStatusFalse(w)
		return
	}

	user, token, err := s.service.Register(r.Context(), userid, passwd, clientID, agent)
	if err != nil {
		s.logger.Info(r.Context(), "adduser failed", "userid", userid, "err", err)
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true, "token": token, "user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	userid := r.PostFormValue("userid")
	passwd := r.PostFormValue("passwd")
	clientID := r.PostFormValue("clientid")
	agent := r.PostFormValue("useragent")

	user, err := s.service.Login(r.Context(), userid, passwd, clientID, agent)
	if err != nil {
		// unknown user and wrong password answer identically
		s.writeStatusFalse(w)
		return
	}

	token, _ := user.LookupToken(clientID)
	s.writeJSON(w, map[string]any{"status": true, "token": token, "user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)

	if _, err := s.service.Authenticate(r.Context(), sess); err != nil {
		s.writeStatusFalse(w)
		return
	}
	if _, err := s.service.DeleteSession(r.Context(), sess, sess.ClientID); err != nil {
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)

	user, err := s.service.Authenticate(r.Context(), sess)
	if err != nil {
		s.logger.Info(r.Context(), "auth failed", "userid", sess.UserID, "err", err)
		s.writeStatusFalse(w)
		return
	}

	token, _ := user.LookupToken(sess.ClientID)
	s.writeJSON(w, map[string]any{"status": true, "token": token, "user": user})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)

	user, err := s.service.CheckToken(r.Context(), sess)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true, "user": user})
}

func (s *Server) handleChangeName(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	text := r.PostFormValue("text")

	user, err := s.service.CheckToken(r.Context(), sess)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}
	if err := s.service.ChangeName(r.Context(), user.UserID, text); err != nil {
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true})
}

func (s *Server) handleChangeEmail(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	text := r.PostFormValue("text")
	delMail := r.PostFormValue("delMail")

	if delMail == "" && !emailPattern.MatchString(text) {
		s.logger.Info(r.Context(), "email change rejected: malformed address")
		s.writeStatusFalse(w)
		return
	}

	user, err := s.service.CheckToken(r.Context(), sess)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}

	result, _, err := s.service.ChangeEmail(r.Context(), user, text)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}

	if result == accounts.EmailAlreadyValid {
		s.writeJSON(w, map[string]any{"status": true, "valid": true})
		return
	}
	s.writeJSON(w, map[string]any{"status": true})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	oldPass := r.PostFormValue("old")
	newPass := r.PostFormValue("new")

	user, err := s.service.CheckToken(r.Context(), sess)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}
	if err := s.service.ChangePassword(r.Context(), user.UserID, oldPass, newPass); err != nil {
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	targetClientID := r.PostFormValue("clientid")

	if _, err := s.service.CheckToken(r.Context(), sess); err != nil {
		s.writeStatusFalse(w)
		return
	}

	user, err := s.service.DeleteSession(r.Context(), sess, targetClientID)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true, "user": user})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	pass := r.PostFormValue("pass")

	user, err := s.service.CheckToken(r.Context(), sess)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}
	if err := s.service.DeleteAccount(r.Context(), user.UserID, pass); err != nil {
		s.writeStatusFalse(w)
		return
	}

	s.writeJSON(w, map[string]any{"status": true})
}

// adminHandler serves both admin toggles; they differ only in which flag and
// secret apply. A wrong secret is answered inside a status:true envelope so
// the client can show "incorrect key" instead of a generic failure.
func (s *Server) adminHandler(flag accounts.AdminFlag) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromRequest(r)
		enable := r.PostFormValue("admin") == "true"
		pass := r.PostFormValue("pass")

		user, err := s.service.CheckToken(r.Context(), sess)
		if err != nil {
			s.writeStatusFalse(w)
			return
		}

		result, err := s.service.SetAdminFlag(r.Context(), user.UserID, flag, enable, pass)
		if err != nil {
			s.writeStatusFalse(w)
			return
		}

		switch result {
		case accounts.AdminGranted:
			s.writeJSON(w, map[string]any{"status": true, "admin": true, "error": false})
		case accounts.AdminDenied:
			s.writeJSON(w, map[string]any{"status": true, "admin": false, "error": true})
		default:
			s.writeJSON(w, map[string]any{"status": true, "admin": false, "error": false})
		}
	}
}

// handleValid confirms an email address. The presented key must be the
// session user's own validation key; a key for some other account is refused
// before the confirmation logic runs.
func (s *Server) handleValid(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromRequest(r)
	key := r.PostFormValue("key")

	user, err := s.service.CheckToken(r.Context(), sess)
	if err != nil {
		s.writeStatusFalse(w)
		return
	}

	if user.EmailValidKey == nil || *user.EmailValidKey != key {
		s.writeJSON(w, map[string]any{"status": true, "err": map[string]any{"type": "notMatchError"}, "user": user})
		return
	}

	confirmed, err := s.service.ConfirmEmail(r.Context(), key)
	if err != nil {
		if confirmed == nil {
			confirmed = user
		}
		s.writeJSON(w, map[string]any{"status": true, "err": map[string]any{"type": confirmErrType(err)}, "user": confirmed})
		return
	}

	s.writeJSON(w, map[string]any{"status": true, "err": false, "valid": true, "user": confirmed})
}

func confirmErrType(err error) string {
	switch {
	case errors.Is(err, common.ErrKeyNotFound):
		return "noDataError"
	case errors.Is(err, common.ErrKeyExpired):
		return "expiredError"
	case errors.Is(err, common.ErrAlreadyValid):
		return "alreadyValid"
	default:
		return "DBError"
	}
}

// Package accounts implements the account core: registration, login,
// session/token authentication, profile mutation, device management, email
// confirmation, and administrative flags. All operations are a single read
// followed by at most one full-document write against the Repository; there
// is no cross-document transaction and no per-user lock, so concurrent
// writers to the same userid race and the last write wins.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/winds-n/member-api/internal/common"
	"github.com/winds-n/member-api/internal/cryptox"
	"github.com/winds-n/member-api/internal/logging"
	"github.com/winds-n/member-api/internal/server/config"
)

// MailSender delivers the confirmation mail for a pending email change.
// Implementations must not block the caller on delivery and must swallow
// (but log) transport failures.
type MailSender interface {
	SendConfirmation(user *User)
}

// Service composes the repository, hashing utility, and mail collaborator
// into the account operations. It never retries: store failures propagate
// immediately as common.ErrStore.
type Service struct {
	repo                   Repository
	mailer                 MailSender
	hasher                 *cryptox.Hasher
	logger                 logging.Logger
	emailValidity          time.Duration
	adminSecretDigest      string
	scoreAdminSecretDigest string

	now func() time.Time
}

func NewService(repo Repository, mailer MailSender, cfg *config.Config, logger logging.Logger) *Service {
	return &Service{
		repo:                   repo,
		mailer:                 mailer,
		hasher:                 cryptox.NewHasher(cfg.DigestSalt),
		logger:                 logger.With("module", "accounts"),
		emailValidity:          cfg.EmailValidityDuration,
		adminSecretDigest:      cfg.AdminSecretDigest,
		scoreAdminSecretDigest: cfg.ScoreAdminSecretDigest,
		now:                    time.Now,
	}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrStore, op, err)
}

// Register creates a new account with a single client entry for the device
// performing the registration. The existence check and the insert are two
// separate store calls; two racing registrations for the same userid can both
// pass the check, in which case the store keeps whichever insert lands
// (there is no unique index managed here).
func (s *Service) Register(ctx context.Context, userid, password, clientID, agent string) (*User, string, error) {
	_, err := s.repo.FindByUserID(ctx, userid)
	if err == nil {
		return nil, "", common.ErrAlreadyRegistered
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, "", storeError("checking registration", err)
	}

	now := s.now()
	token := s.hasher.DeviceToken(clientID, now)

	user := &User{
		UserID:     userid,
		Name:       userid,
		Hash:       s.hasher.Hash(password),
		Email:      nil,
		EmailValid: false,
		ClientList: []Client{{
			ID:        clientID,
			Agent:     agent,
			Token:     token,
			LastLogin: now.UnixMilli(),
		}},
		RegTime: now.UnixMilli(),
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, "", storeError("inserting user", err)
	}

	s.logger.Info(ctx, "user registered", "userid", userid, "client", clientID)
	return user, token, nil
}

// Login verifies the password and issues a fresh token for the device. A
// known device keeps its position in the client list; an unknown one is
// appended. The previously issued token for the device stops working the
// moment the update lands, because authentication is a live equality check
// against the stored value.
func (s *Service) Login(ctx context.Context, userid, password, clientID, agent string) (*User, error) {
	user, err := s.repo.FindByUserID(ctx, userid)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info(ctx, "login failed: unknown user", "userid", userid)
			return nil, common.ErrInvalidCredentials
		}
		return nil, storeError("finding user", err)
	}

	if user.Hash != s.hasher.Hash(password) {
		s.logger.Info(ctx, "login failed: wrong password", "userid", userid)
		return nil, common.ErrInvalidCredentials
	}

	now := s.now()
	token := s.hasher.DeviceToken(clientID, now)

	if client, ok := user.ClientByID(clientID); ok {
		client.Token = token
		client.LastLogin = now.UnixMilli()
	} else {
		user.ClientList = append(user.ClientList, Client{
			ID:        clientID,
			Agent:     agent,
			Token:     token,
			LastLogin: now.UnixMilli(),
		})
	}

	if _, err := s.repo.Update(ctx, userid, user); err != nil {
		return nil, storeError("updating user", err)
	}

	s.logger.Info(ctx, "login", "userid", userid, "client", clientID)
	return user, nil
}

// Authenticate validates a session against the stored device token and
// refreshes the device's lastLogin as a liveness write. The token itself is
// not rotated; only Login does that.
func (s *Service) Authenticate(ctx context.Context, sess Session) (*User, error) {
	user, err := s.lookupSessionUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	if client, ok := user.ClientByID(sess.ClientID); ok {
		client.LastLogin = s.now().UnixMilli()
	}
	if _, err := s.repo.Update(ctx, sess.UserID, user); err != nil {
		return nil, storeError("updating user", err)
	}

	return user, nil
}

// CheckToken validates a session like Authenticate but never writes. Used by
// endpoints that only need to confirm identity before acting.
func (s *Service) CheckToken(ctx context.Context, sess Session) (*User, error) {
	return s.lookupSessionUser(ctx, sess)
}

func (s *Service) lookupSessionUser(ctx context.Context, sess Session) (*User, error) {
	user, err := s.repo.FindByUserID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeError("finding user", err)
	}

	token, ok := user.LookupToken(sess.ClientID)
	if !ok || token != sess.ClientToken {
		return nil, common.ErrTokenMismatch
	}

	return user, nil
}

// ChangeName replaces the display name. No uniqueness constraint applies.
func (s *Service) ChangeName(ctx context.Context, userid, name string) error {
	user, err := s.repo.FindByUserID(ctx, userid)
	if err != nil {
		return storeError("finding user", err)
	}

	user.Name = name
	if _, err := s.repo.Update(ctx, userid, user); err != nil {
		return storeError("updating user", err)
	}
	return nil
}

// ChangeEmail starts, clears, or refuses an email change:
//
//   - empty newEmail clears the stored address (EmailCleared);
//   - a present, already-confirmed address is not overwritten (EmailAlreadyValid);
//   - otherwise a fresh validation key with a bounded lifetime is stored and
//     the confirmation mail is handed to the mail collaborator (EmailPending).
//
// The mail send is fire-and-forget; its outcome never reaches the caller.
func (s *Service) ChangeEmail(ctx context.Context, user *User, newEmail string) (EmailChangeResult, *User, error) {
	if newEmail == "" {
		empty := ""
		user.Email = &empty
		if _, err := s.repo.Update(ctx, user.UserID, user); err != nil {
			return 0, nil, storeError("updating user", err)
		}
		s.logger.Info(ctx, "email cleared", "userid", user.UserID)
		return EmailCleared, user, nil
	}

	if user.Email != nil && *user.Email != "" && user.EmailValid {
		return EmailAlreadyValid, user, nil
	}

	key := cryptox.NewValidationKey()
	expire := s.now().Add(s.emailValidity).UnixMilli()

	user.Email = &newEmail
	user.EmailHash = s.hasher.Hash(newEmail)
	user.EmailValid = false
	user.EmailValidKey = &key
	user.EmailValidExpire = &expire

	if _, err := s.repo.Update(ctx, user.UserID, user); err != nil {
		return 0, nil, storeError("updating user", err)
	}

	s.mailer.SendConfirmation(user)
	s.logger.Info(ctx, "email change pending", "userid", user.UserID)
	return EmailPending, user, nil
}

// ChangePassword verifies the old password and stores the digest of the new
// one. A mismatch is the ordinary negative outcome common.ErrInvalidCredentials.
func (s *Service) ChangePassword(ctx context.Context, userid, oldPassword, newPassword string) error {
	user, err := s.repo.FindByUserID(ctx, userid)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCredentials
		}
		return storeError("finding user", err)
	}

	if user.Hash != s.hasher.Hash(oldPassword) {
		return common.ErrInvalidCredentials
	}

	user.Hash = s.hasher.Hash(newPassword)
	if _, err := s.repo.Update(ctx, userid, user); err != nil {
		return storeError("updating user", err)
	}

	s.logger.Info(ctx, "password changed", "userid", userid)
	return nil
}

// DeleteAccount removes the user document after re-verifying the password.
// Irreversible.
func (s *Service) DeleteAccount(ctx context.Context, userid, password string) error {
	user, err := s.repo.FindByUserID(ctx, userid)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCredentials
		}
		return storeError("finding user", err)
	}

	if user.Hash != s.hasher.Hash(password) {
		return common.ErrInvalidCredentials
	}

	if _, err := s.repo.Remove(ctx, userid); err != nil {
		return storeError("removing user", err)
	}

	s.logger.Info(ctx, "account deleted", "userid", userid)
	return nil
}

// DeleteSession removes the client entry with the given device id from the
// acting user's client list, revoking that device's token. Removing an id
// that is not present is a no-op, not an error. The caller is expected to
// have authenticated the session already.
func (s *Service) DeleteSession(ctx context.Context, sess Session, targetClientID string) (*User, error) {
	user, err := s.repo.FindByUserID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeError("finding user", err)
	}

	kept := user.ClientList[:0]
	for _, c := range user.ClientList {
		if c.ID != targetClientID {
			kept = append(kept, c)
		}
	}
	user.ClientList = kept

	if _, err := s.repo.Update(ctx, sess.UserID, user); err != nil {
		return nil, storeError("updating user", err)
	}

	s.logger.Info(ctx, "session deleted", "userid", sess.UserID, "client", targetClientID)
	return user, nil
}

// ConfirmEmail flips emailValid for the user holding the presented key. The
// key stays on the record after success; a second confirmation attempt is
// caught by the already-valid check, not by key absence. A missing expiry is
// treated as expired.
func (s *Service) ConfirmEmail(ctx context.Context, key string) (*User, error) {
	user, err := s.repo.FindByValidationKey(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrKeyNotFound
		}
		return nil, storeError("finding validation key", err)
	}

	if user.EmailValidExpire == nil || s.now().UnixMilli() > *user.EmailValidExpire {
		return nil, common.ErrKeyExpired
	}
	if user.EmailValid {
		return user, common.ErrAlreadyValid
	}

	user.EmailValid = true
	if _, err := s.repo.Update(ctx, user.UserID, user); err != nil {
		return nil, storeError("updating user", err)
	}

	s.logger.Info(ctx, "email validated", "userid", user.UserID)
	return user, nil
}

// SetAdminFlag toggles one of the administrative flags. Enabling requires the
// presented secret to digest to the configured value; disabling never does.
// A wrong secret yields AdminDenied, not an error, so the caller can report
// "incorrect key" rather than a failure.
func (s *Service) SetAdminFlag(ctx context.Context, userid string, flag AdminFlag, enable bool, secret string) (AdminResult, error) {
	wantDigest := s.adminSecretDigest
	if flag == FlagScoreAdmin {
		wantDigest = s.scoreAdminSecretDigest
	}

	if enable && s.hasher.Hash(secret) != wantDigest {
		s.logger.Info(ctx, "admin flag denied", "userid", userid, "flag", flag)
		return AdminDenied, nil
	}

	user, err := s.repo.FindByUserID(ctx, userid)
	if err != nil {
		return 0, storeError("finding user", err)
	}

	value := enable
	if flag == FlagScoreAdmin {
		user.ScoreAdmin = &value
	} else {
		user.Admin = &value
	}

	if _, err := s.repo.Update(ctx, userid, user); err != nil {
		return 0, storeError("updating user", err)
	}

	if enable {
		s.logger.Info(ctx, "admin flag granted", "userid", userid, "flag", flag)
		return AdminGranted, nil
	}
	s.logger.Info(ctx, "admin flag turned off", "userid", userid, "flag", flag)
	return AdminTurnedOff, nil
}

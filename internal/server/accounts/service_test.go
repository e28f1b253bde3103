package accounts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winds-n/member-api/internal/common"
	"github.com/winds-n/member-api/internal/cryptox"
	"github.com/winds-n/member-api/internal/logging"
	"github.com/winds-n/member-api/internal/server/config"
)

// --- helpers ---

type fakeMailer struct {
	sent []*User
}

func (f *fakeMailer) SendConfirmation(user *User) {
	f.sent = append(f.sent, user)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() *config.Config {
	h := cryptox.NewHasher("::testsalt")
	return &config.Config{
		DigestSalt:             "::testsalt",
		EmailValidityDuration:  24 * time.Hour,
		AdminSecretDigest:      h.Hash("adminkey"),
		ScoreAdminSecretDigest: h.Hash("scorekey"),
	}
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, *fakeMailer, *fakeClock) {
	t.Helper()

	repo := NewMemoryRepository()
	mailer := &fakeMailer{}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc := NewService(repo, mailer, testConfig(), logger)
	clk := &fakeClock{t: time.UnixMilli(1700000000000)}
	svc.now = clk.Now

	return svc, repo, mailer, clk
}

func registerUser(t *testing.T, svc *Service) (*User, string) {
	t.Helper()
	user, token, err := svc.Register(context.Background(), "alice", "passwd", "client-1", "test-agent")
	require.NoError(t, err)
	return user, token
}

// --- registration ---

func TestRegister_CreatesUserWithSingleClient(t *testing.T) {
	svc, repo, _, clk := newTestService(t)

	user, token, err := svc.Register(context.Background(), "alice", "passwd", "client-1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.UserID)
	assert.Equal(t, "alice", user.Name, "display name defaults to userid")
	assert.Nil(t, user.Email)
	assert.False(t, user.EmailValid)
	assert.Nil(t, user.Admin, "admin flag starts absent, not false")
	assert.Equal(t, clk.Now().UnixMilli(), user.RegTime)

	require.Len(t, user.ClientList, 1)
	assert.Equal(t, "client-1", user.ClientList[0].ID)
	assert.Equal(t, token, user.ClientList[0].Token)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, user.Hash, stored.Hash)
}

func TestRegister_DuplicateUserID(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerUser(t, svc)

	_, _, err := svc.Register(context.Background(), "alice", "other", "client-2", "agent")
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, stored.ClientList, 1)
	assert.Equal(t, "client-1", stored.ClientList[0].ID)
}

// --- login ---

func TestLogin_WrongCredentialsCollapse(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc)

	_, errUnknown := svc.Login(context.Background(), "nobody", "passwd", "client-1", "agent")
	_, errWrongPass := svc.Login(context.Background(), "alice", "wrong", "client-1", "agent")

	assert.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPass, common.ErrInvalidCredentials)
}

func TestLogin_NewDeviceAppends_KnownDeviceReplaces(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	registerUser(t, svc)

	clk.Advance(time.Second)
	user, err := svc.Login(context.Background(), "alice", "passwd", "client-2", "other-agent")
	require.NoError(t, err)
	require.Len(t, user.ClientList, 2)
	assert.Equal(t, "client-1", user.ClientList[0].ID, "existing entry keeps its position")
	assert.Equal(t, "client-2", user.ClientList[1].ID)

	oldToken := user.ClientList[1].Token
	oldLogin := user.ClientList[1].LastLogin

	clk.Advance(time.Second)
	user, err = svc.Login(context.Background(), "alice", "passwd", "client-2", "other-agent")
	require.NoError(t, err)
	require.Len(t, user.ClientList, 2, "repeat login must not duplicate the entry")
	assert.NotEqual(t, oldToken, user.ClientList[1].Token)
	assert.Greater(t, user.ClientList[1].LastLogin, oldLogin)
}

func TestLogin_RotationInvalidatesOldToken(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	registerUser(t, svc)

	clk.Advance(time.Second)
	user, err := svc.Login(context.Background(), "alice", "passwd", "client-1", "agent")
	require.NoError(t, err)
	firstToken := user.ClientList[0].Token

	_, err = svc.Authenticate(context.Background(), Session{UserID: "alice", ClientID: "client-1", ClientToken: firstToken})
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = svc.Login(context.Background(), "alice", "passwd", "client-1", "agent")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), Session{UserID: "alice", ClientID: "client-1", ClientToken: firstToken})
	assert.ErrorIs(t, err, common.ErrTokenMismatch, "stale token must be rejected immediately")
}

// --- authenticate / check token ---

func TestAuthenticate_RefreshesLastLoginWithoutRotating(t *testing.T) {
	svc, repo, _, clk := newTestService(t)
	user, token := registerUser(t, svc)
	before := user.ClientList[0].LastLogin

	clk.Advance(time.Minute)
	authed, err := svc.Authenticate(context.Background(), Session{UserID: "alice", ClientID: "client-1", ClientToken: token})
	require.NoError(t, err)

	assert.Equal(t, token, authed.ClientList[0].Token, "auth must not rotate the token")
	assert.Greater(t, authed.ClientList[0].LastLogin, before)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, authed.ClientList[0].LastLogin, stored.ClientList[0].LastLogin, "liveness write must be persisted")
}

func TestAuthenticate_Failures(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, token := registerUser(t, svc)

	tests := []struct {
		name string
		sess Session
		want error
	}{
		{"unknown user", Session{UserID: "ghost", ClientID: "client-1", ClientToken: token}, common.ErrUserNotFound},
		{"unknown device", Session{UserID: "alice", ClientID: "client-9", ClientToken: token}, common.ErrTokenMismatch},
		{"forged token", Session{UserID: "alice", ClientID: "client-1", ClientToken: "bogus"}, common.ErrTokenMismatch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.sess)
			assert.ErrorIs(t, err, tt.want)
			_, err = svc.CheckToken(context.Background(), tt.sess)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckToken_DoesNotWrite(t *testing.T) {
	svc, repo, _, clk := newTestService(t)
	user, token := registerUser(t, svc)
	before := user.ClientList[0].LastLogin

	clk.Advance(time.Minute)
	_, err := svc.CheckToken(context.Background(), Session{UserID: "alice", ClientID: "client-1", ClientToken: token})
	require.NoError(t, err)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, before, stored.ClientList[0].LastLogin)
}

// --- profile mutation ---

func TestChangeName(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerUser(t, svc)

	require.NoError(t, svc.ChangeName(context.Background(), "alice", "Alice A."))

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", stored.Name)
	assert.Equal(t, "alice", stored.UserID)
}

func TestChangeEmail_PendingConfirmation(t *testing.T) {
	svc, repo, mailer, clk := newTestService(t)
	user, _ := registerUser(t, svc)

	result, updated, err := svc.ChangeEmail(context.Background(), user, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, EmailPending, result)

	require.NotNil(t, updated.Email)
	assert.Equal(t, "a@x.com", *updated.Email)
	assert.False(t, updated.EmailValid)
	require.NotNil(t, updated.EmailValidKey)
	assert.Len(t, *updated.EmailValidKey, 32)
	require.NotNil(t, updated.EmailValidExpire)
	assert.Equal(t, clk.Now().Add(24*time.Hour).UnixMilli(), *updated.EmailValidExpire)
	assert.NotEmpty(t, updated.EmailHash)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice", mailer.sent[0].UserID)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, *updated.EmailValidKey, *stored.EmailValidKey)
}

func TestChangeEmail_AlreadyValidRefusesOverwrite(t *testing.T) {
	svc, repo, mailer, _ := newTestService(t)
	user, _ := registerUser(t, svc)

	_, user, err := svc.ChangeEmail(context.Background(), user, "a@x.com")
	require.NoError(t, err)
	user, err = svc.ConfirmEmail(context.Background(), *user.EmailValidKey)
	require.NoError(t, err)

	result, _, err := svc.ChangeEmail(context.Background(), user, "b@y.com")
	require.NoError(t, err)
	assert.Equal(t, EmailAlreadyValid, result)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", *stored.Email, "confirmed address must stay unchanged")
	assert.Len(t, mailer.sent, 1, "no second confirmation mail")
}

func TestChangeEmail_EmptyClears(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user, _ := registerUser(t, svc)

	_, user, err := svc.ChangeEmail(context.Background(), user, "a@x.com")
	require.NoError(t, err)

	result, _, err := svc.ChangeEmail(context.Background(), user, "")
	require.NoError(t, err)
	assert.Equal(t, EmailCleared, result)

	stored, err := repo.FindByUserID(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.Email)
	assert.Empty(t, *stored.Email)
}

func TestChangePassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc)

	err := svc.ChangePassword(context.Background(), "alice", "wrong", "newpass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(context.Background(), "alice", "passwd", "newpass"))

	_, err = svc.Login(context.Background(), "alice", "passwd", "client-1", "agent")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "alice", "newpass", "client-1", "agent")
	assert.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerUser(t, svc)

	err := svc.DeleteAccount(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, svc.DeleteAccount(context.Background(), "alice", "passwd"))

	_, err = repo.FindByUserID(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// --- session management ---

func TestDeleteSession(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	_, token := registerUser(t, svc)

	clk.Advance(time.Second)
	_, err := svc.Login(context.Background(), "alice", "passwd", "client-2", "agent")
	require.NoError(t, err)

	sess := Session{UserID: "alice", ClientID: "client-1", ClientToken: token}

	user, err := svc.DeleteSession(context.Background(), sess, "client-2")
	require.NoError(t, err)
	require.Len(t, user.ClientList, 1)
	assert.Equal(t, "client-1", user.ClientList[0].ID)
}

func TestDeleteSession_AbsentDeviceIsNoop(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, token := registerUser(t, svc)

	sess := Session{UserID: "alice", ClientID: "client-1", ClientToken: token}

	user, err := svc.DeleteSession(context.Background(), sess, "client-9")
	require.NoError(t, err)
	require.Len(t, user.ClientList, 1)
}

// --- email confirmation ---

func TestConfirmEmail_SecondCallAlreadyValid(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	user, _ := registerUser(t, svc)

	_, user, err := svc.ChangeEmail(context.Background(), user, "a@x.com")
	require.NoError(t, err)
	key := *user.EmailValidKey

	confirmed, err := svc.ConfirmEmail(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailValid)
	assert.NotNil(t, confirmed.EmailValidKey, "key stays on the record after success")

	_, err = svc.ConfirmEmail(context.Background(), key)
	assert.ErrorIs(t, err, common.ErrAlreadyValid)
}

func TestConfirmEmail_Expired(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	user, _ := registerUser(t, svc)

	_, user, err := svc.ChangeEmail(context.Background(), user, "a@x.com")
	require.NoError(t, err)

	clk.Advance(24*time.Hour + time.Minute)

	_, err = svc.ConfirmEmail(context.Background(), *user.EmailValidKey)
	assert.ErrorIs(t, err, common.ErrKeyExpired)
}

func TestConfirmEmail_UnknownKey(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc)

	_, err := svc.ConfirmEmail(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)
}

// --- admin flags ---

func TestSetAdminFlag(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerUser(t, svc)
	ctx := context.Background()

	result, err := svc.SetAdminFlag(ctx, "alice", FlagAdmin, true, "wrong")
	require.NoError(t, err)
	assert.Equal(t, AdminDenied, result)

	stored, err := repo.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, stored.Admin, "denied attempt must not touch the flag")

	result, err = svc.SetAdminFlag(ctx, "alice", FlagAdmin, true, "adminkey")
	require.NoError(t, err)
	assert.Equal(t, AdminGranted, result)

	stored, err = repo.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.Admin)
	assert.True(t, *stored.Admin)

	// disabling never needs the secret
	result, err = svc.SetAdminFlag(ctx, "alice", FlagAdmin, false, "whatever")
	require.NoError(t, err)
	assert.Equal(t, AdminTurnedOff, result)

	stored, err = repo.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.Admin)
	assert.False(t, *stored.Admin)
}

func TestSetAdminFlag_ScoreAdminUsesOwnSecret(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerUser(t, svc)
	ctx := context.Background()

	result, err := svc.SetAdminFlag(ctx, "alice", FlagScoreAdmin, true, "adminkey")
	require.NoError(t, err)
	assert.Equal(t, AdminDenied, result, "general admin secret must not unlock the score flag")

	result, err = svc.SetAdminFlag(ctx, "alice", FlagScoreAdmin, true, "scorekey")
	require.NoError(t, err)
	assert.Equal(t, AdminGranted, result)

	stored, err := repo.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.ScoreAdmin)
	assert.True(t, *stored.ScoreAdmin)
	assert.Nil(t, stored.Admin)
}

// --- store failure propagation ---

type failingRepo struct {
	Repository
	err error
}

func (f *failingRepo) FindByUserID(ctx context.Context, userid string) (*User, error) {
	return nil, f.err
}

func TestStoreErrorsPropagate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.repo = &failingRepo{err: errors.New("boom")}

	_, _, err := svc.Register(context.Background(), "bob", "p", "c", "a")
	assert.ErrorIs(t, err, common.ErrStore)

	_, err = svc.Login(context.Background(), "bob", "p", "c", "a")
	assert.ErrorIs(t, err, common.ErrStore)

	_, err = svc.Authenticate(context.Background(), Session{UserID: "bob"})
	assert.ErrorIs(t, err, common.ErrStore)

	err = svc.ChangeName(context.Background(), "bob", "B")
	assert.ErrorIs(t, err, common.ErrStore)
}

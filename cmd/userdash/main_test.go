package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/userdash/internal/auth"
	"github.com/charlesng35/userdash/internal/testutil"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliEnv struct {
	t           *testing.T
	api         *testutil.FakeAPI
	configDir   string
	sessionPath string
}

func newCLIEnv(t *testing.T, users int) *cliEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	env := &cliEnv{
		t:           t,
		api:         testutil.NewFakeAPI(t, users),
		configDir:   t.TempDir(),
		sessionPath: filepath.Join(home, "session.json"),
	}

	config := fmt.Sprintf(`api:
  base_url: %q
  retries: 0
  retry_wait: 1ms
dashboard:
  debounce: 20ms
session:
  path: %q
log:
  level: error
`, env.api.BaseURL(), env.sessionPath)
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, "config.yaml"), []byte(config), 0o600))
	return env
}

func (e *cliEnv) run(stdin io.Reader, args ...string) (string, error) {
	e.t.Helper()
	out := &syncBuffer{}
	err := e.start(stdin, out, args...)()
	return out.String(), err
}

// start executes the command in the background and returns a func that waits
// for it to finish.
func (e *cliEnv) start(stdin io.Reader, out io.Writer, args ...string) func() error {
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.SetIn(stdin)
	cmd.SetArgs(append([]string{"--config", e.configDir}, args...))

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(context.Background()) }()
	return func() error {
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			e.t.Fatal("command did not finish")
			return nil
		}
	}
}

func (e *cliEnv) login(email string) {
	e.t.Helper()
	_, err := e.run(nil, "login", "--email", email, "--password", testutil.DefaultPassword)
	require.NoError(e.t, err)
}

func TestLoginWhoamiLogout(t *testing.T) {
	env := newCLIEnv(t, 12)

	out, err := env.run(nil, "login", "-e", "user1@example.com", "-p", testutil.DefaultPassword)
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as User 1 <user1@example.com>")
	require.FileExists(t, env.sessionPath)

	out, err = env.run(nil, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "User 1")
	require.Contains(t, out, "user1@example.com")
	require.Contains(t, out, "2024-01-01")

	out, err = env.run(nil, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out")
	require.NoFileExists(t, env.sessionPath)

	_, err = env.run(nil, "whoami")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestLoginPromptsForCredentials(t *testing.T) {
	env := newCLIEnv(t, 5)

	out, err := env.run(strings.NewReader("user2@example.com\n"+testutil.DefaultPassword+"\n"), "login")
	require.NoError(t, err)
	require.Contains(t, out, "Email: ")
	require.Contains(t, out, "Password: ")
	require.Contains(t, out, "Signed in as User 2")
}

func TestLoginFailures(t *testing.T) {
	env := newCLIEnv(t, 5)

	_, err := env.run(nil, "login", "-e", "user1@example.com", "-p", "wrong")
	require.EqualError(t, err, "invalid email or password")
	require.NoFileExists(t, env.sessionPath)

	env.api.Fail("/api/auth/login", testutil.Failure{Status: 500, Times: 1})
	_, err = env.run(nil, "login", "-e", "user1@example.com", "-p", testutil.DefaultPassword)
	require.EqualError(t, err, loginFailedMessage)
}

func TestRegisterThenLogin(t *testing.T) {
	env := newCLIEnv(t, 3)

	out, err := env.run(strings.NewReader("Grace\ngrace@example.com\nsecret99\n"), "register")
	require.NoError(t, err)
	require.Contains(t, out, "Name: ")
	require.Contains(t, out, "Registered Grace <grace@example.com>")
	require.NoFileExists(t, env.sessionPath)

	out, err = env.run(nil, "login", "-e", "grace@example.com", "-p", "secret99")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Grace <grace@example.com>")

	_, err = env.run(nil, "register", "-n", "Grace", "-e", "grace@example.com", "-p", "secret99")
	require.EqualError(t, err, "email already registered")

	env.api.Fail("/api/auth/register", testutil.Failure{Status: 500, Times: 1})
	_, err = env.run(nil, "register", "-n", "Hal", "-e", "hal@example.com", "-p", "secret99")
	require.EqualError(t, err, registerFailedMessage)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newCLIEnv(t, 3)

	out, err := env.run(nil, "forgot-password", "-e", "user3@example.com")
	require.NoError(t, err)
	require.Contains(t, out, testutil.ResetNotice)
	token, ok := env.api.ResetToken("user3@example.com")
	require.True(t, ok)

	_, err = env.run(strings.NewReader("newpass1\nmismatch\n"), "reset-password", "-t", token)
	require.Error(t, err)
	require.Contains(t, err.Error(), "confirm_password failed on eqfield")

	out, err = env.run(strings.NewReader("newpass1\nnewpass1\n"), "reset-password", "-t", token)
	require.NoError(t, err)
	require.Contains(t, out, "Confirm password: ")
	require.Contains(t, out, "Password has been reset successfully.")

	_, err = env.run(nil, "login", "-e", "user3@example.com", "-p", testutil.DefaultPassword)
	require.EqualError(t, err, "invalid email or password")
	_, err = env.run(nil, "login", "-e", "user3@example.com", "-p", "newpass1")
	require.NoError(t, err)

	_, err = env.run(nil, "reset-password", "-t", token, "-p", "newpass2")
	require.EqualError(t, err, "invalid or expired reset token")
}

func TestAPIFailureMessage(t *testing.T) {
	require.Equal(t, "invalid email or password",
		apiFailure(appErrors.ErrUnauthorized.WithMessage("invalid email or password"), loginFailedMessage))
	require.Equal(t, loginFailedMessage, apiFailure(appErrors.NewServerError(500, ""), loginFailedMessage))
	require.Equal(t, loginFailedMessage, apiFailure(appErrors.NewNetworkError(io.ErrUnexpectedEOF), loginFailedMessage))
	require.Equal(t, registerFailedMessage, apiFailure(fmt.Errorf("boom"), registerFailedMessage))
}

func TestUsersOnce(t *testing.T) {
	env := newCLIEnv(t, 12)
	env.login("user1@example.com")

	out, err := env.run(nil, "users", "--once")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as User 1 <user1@example.com>")
	require.Contains(t, out, "Total users: 12")
	require.Contains(t, out, "user10@example.com")
	require.NotContains(t, out, "user11@example.com")
	require.Contains(t, out, "Page 1 of 2")

	out, err = env.run(nil, "users", "--once", "--search", "ann")
	require.NoError(t, err)
	require.Contains(t, out, "Total users: 4")
	require.Contains(t, out, `Search: "ann"`)
	require.Contains(t, out, "Ann 12")
	require.NotContains(t, out, "User 2")
	require.Contains(t, out, "Page 1 of 1")

	out, err = env.run(nil, "users", "--once", "--search", "zed")
	require.NoError(t, err)
	require.Contains(t, out, "No users found")
}

func TestUsersRequiresLogin(t *testing.T) {
	env := newCLIEnv(t, 3)

	_, err := env.run(nil, "users", "--once")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.Zero(t, env.api.Calls("/api/users"))
}

func TestUsersRejectedTokenExpiresSession(t *testing.T) {
	env := newCLIEnv(t, 3)
	require.NoError(t, auth.NewFileStore(env.sessionPath).Save(&auth.Session{Token: "revoked", CreatedAt: time.Now()}))

	out, err := env.run(nil, "users", "--once")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.Contains(t, err.Error(), "session expired")
	require.Contains(t, out, "Error: Invalid or expired token")
	require.NoFileExists(t, env.sessionPath)
}

func TestUsersInteractive(t *testing.T) {
	env := newCLIEnv(t, 25)
	env.login("user1@example.com")

	in, feed := io.Pipe()
	out := &syncBuffer{}
	wait := env.start(in, out, "users")

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Page 1 of 3") }, 5*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(feed, "n\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Page 2 of 3") }, 5*time.Second, 10*time.Millisecond)
	require.Contains(t, out.String(), "user11@example.com")

	_, err = io.WriteString(feed, "/ann\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Total users: 8") }, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(feed, "g x\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), `invalid page "x"`) }, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(feed, "q\n")
	require.NoError(t, err)
	require.NoError(t, wait())
	_ = feed.Close()

	queries := env.api.Queries()
	require.NotEmpty(t, queries)
	last := queries[len(queries)-1]
	require.Equal(t, "ann", last.Search)
	require.Equal(t, 1, last.Page)
}

func TestUsersInteractiveShowsFailedPage(t *testing.T) {
	env := newCLIEnv(t, 25)
	env.login("user1@example.com")

	in, feed := io.Pipe()
	out := &syncBuffer{}
	wait := env.start(in, out, "users")

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Page 1 of 3") }, 5*time.Second, 10*time.Millisecond)

	env.api.Fail("/api/users", testutil.Failure{Status: 500, Message: "boom"})
	_, err := io.WriteString(feed, "n\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Error: boom (showing previous results)")
	}, 5*time.Second, 10*time.Millisecond)
	require.Contains(t, out.String(), "Page 2 of 3")

	env.api.ClearFailures()
	_, err = io.WriteString(feed, "r\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "user11@example.com") }, 5*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(feed, "q\n")
	require.NoError(t, err)
	require.NoError(t, wait())
	_ = feed.Close()
}

func TestUsersOnceReportsFailedSearch(t *testing.T) {
	env := newCLIEnv(t, 25)
	env.login("user1@example.com")
	env.api.Fail("/api/users", testutil.Failure{Status: 500, Message: "search unavailable"})

	out, err := env.run(nil, "users", "--once", "--search", "ann")
	require.Error(t, err)
	require.Contains(t, err.Error(), "search unavailable")
	require.Contains(t, out, "Error: search unavailable")
}

func TestLoadApplicationConfig(t *testing.T) {
	env := newCLIEnv(t, 1)

	cfg, err := loadApplicationConfig(filepath.Join(env.configDir, "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, env.api.BaseURL(), cfg.API.BaseURL)
	require.Equal(t, 20*time.Millisecond, cfg.Dashboard.Debounce)

	_, err = loadApplicationConfig(filepath.Join(env.configDir, "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestUsersOnceStartsOnRequestedPage(t *testing.T) {
	env := newCLIEnv(t, 25)
	env.login("user1@example.com")

	out, err := env.run(nil, "users", "--once", "--page", "9")
	require.NoError(t, err)
	require.Contains(t, out, "Page 3 of 3")
	require.Contains(t, out, "user25@example.com")
	require.NotContains(t, out, "user20@example.com")
}

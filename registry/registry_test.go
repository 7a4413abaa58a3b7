package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/gomt5/errs"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
	"github.com/rustyeddy/gomt5/terminal/sim"
)

// newRegistry backs every account with its own simulator that accepts the
// logins used below.
func newRegistry() *Registry {
	factory := func() (terminal.Gateway, error) {
		gw := sim.New()
		gw.AddAccount(1001, "pw", "Server1", 10000)
		gw.AddAccount(2002, "pw", "Server2", 5000)
		gw.AddAccount(3003, "pw", "Server3", 2500)
		return gw, nil
	}
	return New(factory, WithSessionOptions(session.WithConfig(session.Config{
		Retries: 2, RetryDelay: time.Millisecond, LaunchWait: time.Millisecond,
	})))
}

func addAll(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, r.AddAccount(context.Background(), "main", session.Credentials{Login: 1001, Password: "pw", Server: "Server1"}, ""))
	require.NoError(t, r.AddAccount(context.Background(), "demo", session.Credentials{Login: 2002, Password: "pw", Server: "Server2"}, ""))
	require.NoError(t, r.AddAccount(context.Background(), "scalp", session.Credentials{Login: 3003, Password: "pw", Server: "Server3"}, ""))
}

func TestAddAccountDuplicate(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()

	require.NoError(t, r.AddAccount(context.Background(), "main", session.Credentials{Login: 1001, Password: "pw"}, ""))
	original, ok := r.Account("main")
	require.True(t, ok)

	err := r.AddAccount(context.Background(), "main", session.Credentials{Login: 2002, Password: "pw"}, "")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	// The original session is untouched.
	after, ok := r.Account("main")
	require.True(t, ok)
	assert.Same(t, original, after)
	assert.True(t, after.IsConnected())
}

func TestAddAccountConnectFailureNotRegistered(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()

	err := r.AddAccount(context.Background(), "bad", session.Credentials{Login: 9999, Password: "nope"}, "")
	require.Error(t, err)
	assert.True(t, errs.IsConnection(err))

	_, ok := r.Account("bad")
	assert.False(t, ok)
	assert.Empty(t, r.Names())
}

func TestFirstAccountBecomesActive(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	assert.Equal(t, "main", r.ActiveName())
	sess, err := r.CurrentAccount()
	require.NoError(t, err)
	assert.Equal(t, int64(1001), sess.Credentials().Login)
}

func TestRemoveAccountIdempotent(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	r.RemoveAccount("missing") // no-op, no panic
	assert.Len(t, r.Names(), 3)

	r.RemoveAccount("demo")
	r.RemoveAccount("demo")
	assert.Len(t, r.Names(), 2)
}

func TestRemoveActiveClearsPointer(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	require.NoError(t, r.SwitchAccount("demo"))
	r.RemoveAccount("demo")

	assert.Empty(t, r.ActiveName())
	_, err := r.CurrentAccount()
	require.Error(t, err)
	assert.True(t, errs.IsConnection(err))
}

func TestSwitchAccount(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	require.NoError(t, r.SwitchAccount("demo"))
	sess, err := r.CurrentAccount()
	require.NoError(t, err)
	assert.Equal(t, "Server2", sess.Credentials().Server)

	err = r.SwitchAccount("nope")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	// Failed switch leaves the pointer alone.
	assert.Equal(t, "demo", r.ActiveName())
}

func TestSwitchAccountConcurrent(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				require.NoError(t, r.SwitchAccount("main"))
				require.NoError(t, r.SwitchAccount("demo"))
				sess, err := r.CurrentAccount()
				require.NoError(t, err)
				login := sess.Credentials().Login
				// Always exactly one of the two, never a stale or mixed view.
				require.True(t, login == 1001 || login == 2002, "got login %d", login)
			}
		}()
	}
	wg.Wait()
}

func TestExecuteOnAllCapturesFailures(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	// Disconnect one account behind the registry's back.
	demo, ok := r.Account("demo")
	require.True(t, ok)
	demo.Disconnect()

	results := r.ExecuteOnAll(context.Background(), func(_ context.Context, name string, sess *session.Session) (any, error) {
		info := sess.Terminal().AccountInfo()
		if info == nil {
			code, msg := sess.Terminal().LastError()
			return nil, errs.Connection("account_info", code, "%s", msg)
		}
		return info.Balance, nil
	})

	require.Len(t, results, 3)
	assert.NoError(t, results["main"].Err)
	assert.NoError(t, results["scalp"].Err)
	assert.InDelta(t, 10000.0, results["main"].Value.(float64), 1e-9)

	require.Error(t, results["demo"].Err)
	assert.True(t, errs.IsConnection(results["demo"].Err))
}

func TestExecuteOnAllDoesNotBlockSwitch(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	defer r.Close()
	addAll(t, r)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		r.ExecuteOnAll(context.Background(), func(_ context.Context, name string, _ *session.Session) (any, error) {
			if name == "main" {
				close(started)
				<-release
			}
			return nil, nil
		})
	}()

	<-started
	// The registry lock must be free while operations run.
	require.NoError(t, r.SwitchAccount("scalp"))
	close(release)
	<-done

	assert.Equal(t, "scalp", r.ActiveName())
}

func TestCloseDisconnectsEverything(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	addAll(t, r)

	sessions := make([]*session.Session, 0, 3)
	for _, name := range r.Names() {
		sess, ok := r.Account(name)
		require.True(t, ok)
		sessions = append(sessions, sess)
	}

	r.Close()
	r.Close() // safe to repeat

	for _, sess := range sessions {
		assert.False(t, sess.IsConnected())
	}
	assert.Empty(t, r.Names())
	_, err := r.CurrentAccount()
	assert.Error(t, err)
}

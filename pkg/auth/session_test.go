package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpscraper/pkg/logger"
	"mpscraper/pkg/wechat"
)

// loginServer mocks the platform's login endpoints. pollStatuses is consumed
// one entry per poll; the last entry repeats.
type loginServer struct {
	server       *httptest.Server
	pollCount    int32
	pollStatuses []int
	searchRet    int
	logoutCalls  int32
}

func newLoginServer(t *testing.T, pollStatuses []int) *loginServer {
	t.Helper()

	ls := &loginServer{pollStatuses: pollStatuses}
	mux := http.NewServeMux()

	mux.HandleFunc("/cgi-bin/bizlogin", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "startlogin":
			http.SetCookie(w, &http.Cookie{Name: "login_sid", Value: "sid-123", Path: "/"})
			fmt.Fprint(w, `{"base_resp":{"ret":0},"uuid":"challenge-uuid-1"}`)
		case "login":
			http.Redirect(w, r, "/cgi-bin/home?t=home/index&token=8675309", http.StatusFound)
		case "logout":
			atomic.AddInt32(&ls.logoutCalls, 1)
			fmt.Fprint(w, `{"base_resp":{"ret":0}}`)
		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/cgi-bin/loginauth", func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&ls.pollCount, 1)) - 1
		if n >= len(ls.pollStatuses) {
			n = len(ls.pollStatuses) - 1
		}
		status := ls.pollStatuses[n]
		if status == 1 {
			fmt.Fprint(w, `{"base_resp":{"ret":0},"status":1,"redirect_url":"/cgi-bin/bizlogin?action=login"}`)
			return
		}
		fmt.Fprintf(w, `{"base_resp":{"ret":0},"status":%d}`, status)
	})

	mux.HandleFunc("/cgi-bin/home", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "slave_sid", Value: "slave-456", Path: "/"})
		fmt.Fprint(w, `<html><script>window.wx = { nick_name : "Example Account" };</script></html>`)
	})

	mux.HandleFunc("/cgi-bin/searchbiz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"base_resp":{"ret":%d},"total":0,"list":[]}`, ls.searchRet)
	})

	ls.server = httptest.NewServer(mux)
	t.Cleanup(ls.server.Close)
	return ls
}

func newTestSession(t *testing.T, ls *loginServer, store CredentialStore) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(store, logger.Nop(), wechat.WithBaseURL(ls.server.URL))
	require.NoError(t, err)
	return sm
}

func TestIssueChallenge(t *testing.T) {
	ls := newLoginServer(t, []int{0})
	sm := newTestSession(t, ls, NewMockStore())

	challenge, err := sm.IssueChallenge(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "challenge-uuid-1", challenge.UUID)
	assert.Contains(t, challenge.URL, "/cgi-bin/loginqrcode?action=getqrcode")
	assert.False(t, challenge.Expired())
}

func TestIssueChallengeUUIDFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/bizlogin", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"base_resp":{"ret":0}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sm, err := NewSessionManager(NewMockStore(), logger.Nop(), wechat.WithBaseURL(server.URL))
	require.NoError(t, err)

	challenge, err := sm.IssueChallenge(context.Background())
	require.NoError(t, err)

	// No uuid anywhere in the response yields a local placeholder; the
	// session cookies still identify the challenge.
	assert.Contains(t, challenge.UUID, "tmp_")
}

func TestPollStatusSequence(t *testing.T) {
	ls := newLoginServer(t, []int{0, 4, 1})
	store := NewMockStore()
	sm := newTestSession(t, ls, store)

	ctx := context.Background()
	challenge, err := sm.IssueChallenge(ctx)
	require.NoError(t, err)

	status, creds := sm.PollStatus(ctx, challenge.UUID)
	assert.Equal(t, StatusWaiting, status)
	assert.Nil(t, creds)

	status, creds = sm.PollStatus(ctx, challenge.UUID)
	assert.Equal(t, StatusScannedPendingConfirm, status)
	assert.Nil(t, creds)

	status, creds = sm.PollStatus(ctx, challenge.UUID)
	assert.Equal(t, StatusSuccess, status)
	require.NotNil(t, creds)

	assert.Equal(t, "8675309", creds.Token)
	assert.NotEmpty(t, creds.Fingerprint)
	assert.Equal(t, "sid-123", creds.Cookies["login_sid"])
	assert.Equal(t, "Example Account", creds.Nickname())

	// Credentials were persisted and the manager now reports authenticated.
	assert.True(t, store.Exists())
	assert.True(t, sm.Authenticated())
}

func TestPollStatusUnknownRemoteCode(t *testing.T) {
	ls := newLoginServer(t, []int{99})
	sm := newTestSession(t, ls, NewMockStore())

	status, creds := sm.PollStatus(context.Background(), "u")
	assert.Equal(t, StatusExpiredOrFailed, status)
	assert.Nil(t, creds)
}

func TestPollStatusTransportFailureNeverPanicsTheLoop(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	sm, err := NewSessionManager(NewMockStore(), logger.Nop(), wechat.WithBaseURL(dead.URL))
	require.NoError(t, err)

	status, creds := sm.PollStatus(context.Background(), "u")
	assert.Equal(t, StatusExpiredOrFailed, status)
	assert.Nil(t, creds)
}

func TestSessionAutoLoad(t *testing.T) {
	ls := newLoginServer(t, []int{0})

	store := NewMockStore()
	require.NoError(t, store.Save(&Credentials{
		Token:   "55555",
		Cookies: map[string]string{"slave_sid": "restored"},
	}))

	sm := newTestSession(t, ls, store)
	assert.True(t, sm.Authenticated())
	assert.Equal(t, "55555", sm.CurrentCredentials().Token)
}

func TestValidate(t *testing.T) {
	ls := newLoginServer(t, []int{1})
	sm := newTestSession(t, ls, NewMockStore())

	ctx := context.Background()
	assert.False(t, sm.Validate(ctx), "no session means invalid")

	challenge, err := sm.IssueChallenge(ctx)
	require.NoError(t, err)
	status, _ := sm.PollStatus(ctx, challenge.UUID)
	require.Equal(t, StatusSuccess, status)

	assert.True(t, sm.Validate(ctx))

	// A rejected probe reports invalid.
	ls.searchRet = 200040
	assert.False(t, sm.Validate(ctx))
}

func TestValidateFailsClosedOnTransportError(t *testing.T) {
	ls := newLoginServer(t, []int{1})
	store := NewMockStore()
	sm := newTestSession(t, ls, store)

	ctx := context.Background()
	challenge, err := sm.IssueChallenge(ctx)
	require.NoError(t, err)
	status, _ := sm.PollStatus(ctx, challenge.UUID)
	require.Equal(t, StatusSuccess, status)

	ls.server.Close()
	assert.False(t, sm.Validate(ctx))
}

func TestRefreshNotSupported(t *testing.T) {
	ls := newLoginServer(t, []int{0})
	sm := newTestSession(t, ls, NewMockStore())

	creds, err := sm.Refresh(context.Background())
	assert.Nil(t, creds)
	assert.ErrorIs(t, err, ErrRefreshNotSupported)
}

func TestLogout(t *testing.T) {
	ls := newLoginServer(t, []int{1})
	store := NewMockStore()
	sm := newTestSession(t, ls, store)

	ctx := context.Background()
	challenge, err := sm.IssueChallenge(ctx)
	require.NoError(t, err)
	status, _ := sm.PollStatus(ctx, challenge.UUID)
	require.Equal(t, StatusSuccess, status)

	require.NoError(t, sm.Logout(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(&ls.logoutCalls))
	assert.False(t, sm.Authenticated())
	assert.False(t, store.Exists())
}

func TestLogoutDeletesLocallyEvenWhenRemoteFails(t *testing.T) {
	ls := newLoginServer(t, []int{1})
	store := NewMockStore()
	sm := newTestSession(t, ls, store)

	ctx := context.Background()
	challenge, err := sm.IssueChallenge(ctx)
	require.NoError(t, err)
	status, _ := sm.PollStatus(ctx, challenge.UUID)
	require.Equal(t, StatusSuccess, status)

	ls.server.Close()

	require.NoError(t, sm.Logout(ctx))
	assert.False(t, sm.Authenticated())
	assert.False(t, store.Exists())
}

func TestSetCredentials(t *testing.T) {
	ls := newLoginServer(t, []int{0})
	store := NewMockStore()
	sm := newTestSession(t, ls, store)

	err := sm.SetCredentials(&Credentials{
		Token:   "99999",
		Cookies: map[string]string{"slave_sid": "imported"},
	})
	require.NoError(t, err)

	assert.True(t, sm.Authenticated())
	assert.NotEmpty(t, sm.CurrentCredentials().Fingerprint, "a fingerprint is assigned on import")
	assert.True(t, store.Exists())

	assert.ErrorIs(t, sm.SetCredentials(&Credentials{Token: "x"}), ErrInvalidCredentials)
}

func TestScanStatusString(t *testing.T) {
	assert.Equal(t, "waiting", StatusWaiting.String())
	assert.Equal(t, "scanned_pending_confirm", StatusScannedPendingConfirm.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "expired_or_failed", StatusExpiredOrFailed.String())
}

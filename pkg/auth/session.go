package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mpscraper/pkg/logger"
	"mpscraper/pkg/wechat"
)

// ScanStatus is the state of a QR login challenge.
type ScanStatus int

const (
	// StatusWaiting means the code has not been scanned yet.
	StatusWaiting ScanStatus = iota
	// StatusScannedPendingConfirm means the code was scanned but the user
	// has not confirmed on their device.
	StatusScannedPendingConfirm
	// StatusSuccess means login completed and credentials are available.
	StatusSuccess
	// StatusExpiredOrFailed means the challenge is dead and a new one must
	// be issued.
	StatusExpiredOrFailed
)

func (s ScanStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusScannedPendingConfirm:
		return "scanned_pending_confirm"
	case StatusSuccess:
		return "success"
	case StatusExpiredOrFailed:
		return "expired_or_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Remote scan-status codes as the platform reports them.
const (
	remoteStatusWaiting   = 0
	remoteStatusConfirmed = 1
	remoteStatusScanned   = 4
)

// challengeTTL is how long a QR code stays scannable.
const challengeTTL = 5 * time.Minute

// QRChallenge is an issued login challenge. URL points at the QR code image
// the user must scan.
type QRChallenge struct {
	URL       string
	UUID      string
	ExpiresAt time.Time
}

// Expired reports whether the challenge can no longer be scanned.
func (q *QRChallenge) Expired() bool {
	return time.Now().After(q.ExpiresAt)
}

// ErrRefreshNotSupported is returned by Refresh: the platform has no token
// refresh endpoint, so an expired session always needs a full re-login.
var ErrRefreshNotSupported = errors.New("session refresh not supported, re-login required")

var (
	uuidParamRe = regexp.MustCompile(`uuid=([0-9A-Za-z_-]+)`)
	tokenRe     = regexp.MustCompile(`token[=:](\d+)`)
	nicknameRe  = regexp.MustCompile(`nick_name\s*:\s*"([^"]+)"`)
)

// SessionManager drives the QR login flow and owns the active credentials.
// It keeps its own cookie-jarred client because the platform establishes the
// session across several redirected requests during login.
type SessionManager struct {
	client *wechat.Client
	store  CredentialStore
	logger logger.Logger

	mu    sync.Mutex
	creds *Credentials
}

// NewSessionManager creates a session manager. A previously stored session
// is loaded automatically so callers can skip login when one is still live.
func NewSessionManager(store CredentialStore, log logger.Logger, opts ...wechat.Option) (*SessionManager, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	clientOpts := append([]wechat.Option{wechat.WithCookieJar(jar)}, opts...)
	sm := &SessionManager{
		client: wechat.NewClient(log, clientOpts...),
		store:  store,
		logger: log,
	}

	if store != nil {
		if creds, err := store.Load(); err == nil && !creds.IsExpired() {
			sm.creds = creds
			log.InfoWithFields("restored stored session", map[string]interface{}{
				"nickname": creds.Nickname(),
			})
		}
	}
	return sm, nil
}

// Authenticated reports whether a live session is held.
func (s *SessionManager) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds != nil && !s.creds.IsExpired()
}

// CurrentCredentials returns the active credentials, or nil when logged out.
func (s *SessionManager) CurrentCredentials() *Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// IssueChallenge starts a login attempt and returns a QR challenge for the
// user to scan. Issuing a new challenge invalidates the previous one.
func (s *SessionManager) IssueChallenge(ctx context.Context) (*QRChallenge, error) {
	base := s.client.BaseURL()

	resp, err := s.client.Get(ctx, wechat.StartLoginURL(base))
	if err != nil {
		return nil, fmt.Errorf("failed to start login: %w", err)
	}

	challengeUUID := s.extractUUID(resp)

	challenge := &QRChallenge{
		URL:       wechat.QRCodeURL(base, time.Now().UnixMilli()),
		UUID:      challengeUUID,
		ExpiresAt: time.Now().Add(challengeTTL),
	}

	s.logger.InfoWithFields("issued login challenge", map[string]interface{}{
		"uuid":       challenge.UUID,
		"expires_at": challenge.ExpiresAt,
	})
	return challenge, nil
}

// extractUUID pulls the challenge UUID out of the handshake response. The
// platform surfaces it inconsistently, so several locations are tried before
// falling back to a local placeholder, which still works because the session
// cookies carry the real challenge identity.
func (s *SessionManager) extractUUID(resp *wechat.Response) string {
	if u, err := url.Parse(resp.FinalURL); err == nil {
		if v := u.Query().Get("uuid"); v != "" {
			return v
		}
	}

	for _, cookie := range resp.Cookies {
		if strings.Contains(strings.ToLower(cookie.Name), "uuid") && cookie.Value != "" {
			return cookie.Value
		}
	}

	if m := uuidParamRe.FindSubmatch(resp.Body); m != nil {
		return string(m[1])
	}

	return fmt.Sprintf("tmp_%d", time.Now().UnixMilli())
}

// PollStatus checks the scan state of a challenge. On success the completed
// credentials are returned and persisted. Transport failures never abort a
// poll loop; they report as StatusExpiredOrFailed so the caller issues a
// fresh challenge.
func (s *SessionManager) PollStatus(ctx context.Context, challengeUUID string) (ScanStatus, *Credentials) {
	resp, err := s.client.Get(ctx, wechat.PollURL(s.client.BaseURL()))
	if err != nil {
		s.logger.WarnWithFields("login poll failed", map[string]interface{}{
			"uuid":  challengeUUID,
			"error": err.Error(),
		})
		return StatusExpiredOrFailed, nil
	}

	var poll wechat.PollResponse
	if err := json.Unmarshal(resp.Body, &poll); err != nil {
		s.logger.WarnWithFields("login poll returned unparseable body", map[string]interface{}{
			"uuid":  challengeUUID,
			"error": err.Error(),
		})
		return StatusExpiredOrFailed, nil
	}

	switch poll.Status {
	case remoteStatusWaiting:
		return StatusWaiting, nil
	case remoteStatusScanned:
		return StatusScannedPendingConfirm, nil
	case remoteStatusConfirmed:
		creds, err := s.completeLogin(ctx, poll.RedirectURL)
		if err != nil {
			s.logger.ErrorWithFields("login completion failed", map[string]interface{}{
				"uuid":  challengeUUID,
				"error": err.Error(),
			})
			return StatusExpiredOrFailed, nil
		}
		return StatusSuccess, creds
	default:
		return StatusExpiredOrFailed, nil
	}
}

// completeLogin follows the post-confirmation redirect, extracts the session
// token, captures the session cookies, and persists the credentials.
func (s *SessionManager) completeLogin(ctx context.Context, redirectURL string) (*Credentials, error) {
	base := s.client.BaseURL()

	target := redirectURL
	if target == "" {
		target = base + "/cgi-bin/bizlogin?action=login"
	} else if strings.HasPrefix(target, "/") {
		target = base + target
	}

	resp, err := s.client.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to follow login redirect: %w", err)
	}

	token := extractToken(resp)
	if token == "" {
		return nil, errors.New("login succeeded but no session token found")
	}

	cookies := make(map[string]string)
	if jar := s.client.Jar(); jar != nil {
		if baseURL, err := url.Parse(base); err == nil {
			for _, cookie := range jar.Cookies(baseURL) {
				cookies[cookie.Name] = cookie.Value
			}
		}
	}
	for _, cookie := range resp.Cookies {
		cookies[cookie.Name] = cookie.Value
	}
	if len(cookies) == 0 {
		return nil, errors.New("login succeeded but no session cookies captured")
	}

	creds := &Credentials{
		Token:       token,
		Cookies:     cookies,
		Fingerprint: uuid.NewString(),
		UserInfo:    map[string]string{},
	}

	// Best effort: the home page embeds the account nickname.
	if home, err := s.client.Get(ctx, wechat.HomeURL(base, token)); err == nil {
		if m := nicknameRe.FindSubmatch(home.Body); m != nil {
			creds.UserInfo["nickname"] = string(m[1])
		}
	}

	if s.store != nil {
		if err := s.store.Save(creds); err != nil {
			s.logger.WarnWithFields("failed to persist credentials", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	s.logger.InfoWithFields("login completed", map[string]interface{}{
		"nickname":    creds.Nickname(),
		"fingerprint": creds.Fingerprint,
	})
	return creds, nil
}

// extractToken finds the session token in the post-login response, first in
// the final URL query, then anywhere in the body.
func extractToken(resp *wechat.Response) string {
	if u, err := url.Parse(resp.FinalURL); err == nil {
		if v := u.Query().Get("token"); v != "" {
			return v
		}
	}
	if m := tokenRe.FindSubmatch(resp.Body); m != nil {
		return string(m[1])
	}
	return ""
}

// Validate probes the platform to check whether the held session is still
// accepted. Any failure reports false: an unverifiable session is treated
// as dead.
func (s *SessionManager) Validate(ctx context.Context) bool {
	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()

	if creds == nil || creds.IsExpired() {
		return false
	}

	_, err := s.client.SearchAccount(ctx, creds.Token, "a", creds.Cookies)
	if err != nil {
		s.logger.DebugWithFields("session validation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

// Refresh always fails with ErrRefreshNotSupported. The platform has no
// refresh endpoint; callers must run the QR flow again.
func (s *SessionManager) Refresh(ctx context.Context) (*Credentials, error) {
	return nil, ErrRefreshNotSupported
}

// Logout invalidates the session remotely on a best-effort basis and always
// deletes the local credentials.
func (s *SessionManager) Logout(ctx context.Context) error {
	s.mu.Lock()
	creds := s.creds
	s.creds = nil
	s.mu.Unlock()

	if creds != nil {
		if _, err := s.client.Get(ctx, wechat.LogoutURL(s.client.BaseURL(), creds.Token)); err != nil {
			s.logger.WarnWithFields("remote logout failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if s.store != nil {
		if err := s.store.Delete(); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			return fmt.Errorf("failed to delete stored credentials: %w", err)
		}
	}

	s.logger.Info("logged out")
	return nil
}

// SetCredentials installs externally obtained credentials, for example a
// session imported from a browser, and persists them.
func (s *SessionManager) SetCredentials(creds *Credentials) error {
	if creds == nil || creds.Token == "" || len(creds.Cookies) == 0 {
		return ErrInvalidCredentials
	}
	if creds.Fingerprint == "" {
		creds.Fingerprint = uuid.NewString()
	}

	if s.store != nil {
		if err := s.store.Save(creds); err != nil {
			return fmt.Errorf("failed to persist credentials: %w", err)
		}
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

package wechat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "mpscraper/pkg/errors"
	"mpscraper/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(logger.Nop(),
		WithBaseURL(server.URL),
		WithMaxRetries(2),
	)
	return client, server
}

func TestFetchArticleListSendsExpectedQuery(t *testing.T) {
	var gotQuery map[string]string
	var gotCookie string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`{"base_resp":{"ret":0},"app_msg_cnt":1,"app_msg_list":[{"title":"A","link":"https://x/a"}]}`))
	}))

	resp, err := client.FetchArticleList(context.Background(), "12345", "FAKEID", 10, 5,
		map[string]string{"slave_sid": "abc"})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "list_ex", gotQuery["action"])
	assert.Equal(t, "10", gotQuery["begin"])
	assert.Equal(t, "5", gotQuery["count"])
	assert.Equal(t, "FAKEID", gotQuery["fakeid"])
	assert.Equal(t, "9", gotQuery["type"])
	assert.Equal(t, "12345", gotQuery["token"])
	assert.Equal(t, "json", gotQuery["f"])
	assert.Contains(t, gotCookie, "slave_sid=abc")
}

func TestFetchArticleListMapsPlatformErrors(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base_resp":{"ret":200013,"err_msg":"freq control"}}`))
	}))

	_, err := client.FetchArticleList(context.Background(), "t", "id", 0, 5, nil)
	require.Error(t, err)
	assert.True(t, apierrors.IsRateLimit(err))
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL+"/x", nil, nil, &out)
	require.NoError(t, err)
	assert.True(t, out["ok"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONDoesNotRetryRateLimits(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL+"/x", nil, nil, &out)
	require.Error(t, err)
	assert.True(t, apierrors.IsRateLimit(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "rate-limited requests must not be retried")
}

func TestGetJSONDoesNotRetryAuthFailures(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL+"/x", nil, nil, &out)
	require.Error(t, err)
	assert.True(t, apierrors.IsAuth(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSONParseFailure(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>login page</html>`))
	}))

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL+"/x", nil, nil, &out)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindParse, apierrors.KindOf(err))
}

func TestGetFollowsRedirectsAndReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/done?token=42", http.StatusFound)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})

	client, server := newTestClient(t, mux)

	resp, err := client.Get(context.Background(), server.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.FinalURL, "token=42")
	assert.Equal(t, []byte("landed"), resp.Body)
}

func TestSearchAccount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search_biz", r.URL.Query().Get("action"))
		w.Write([]byte(`{"base_resp":{"ret":0},"total":1,"list":[{"fakeid":"FK1","nickname":"Example"}]}`))
	}))

	resp, err := client.SearchAccount(context.Background(), "tok", "example", nil)
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "FK1", resp.Accounts[0].FakeID)
}

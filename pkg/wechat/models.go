package wechat

import (
	"encoding/json"
	"strconv"

	"mpscraper/pkg/article"
	apierrors "mpscraper/pkg/errors"
)

// MaxPageSize is the largest page the list endpoint will serve.
const MaxPageSize = 10

// Ret codes the platform returns in base_resp for conditions we act on.
const (
	retOK             = 0
	retSessionExpired = 200040
	retNotLoggedIn    = 200003
	retFreqControl    = 200013
	retNoPermission   = 64004
)

// BaseResp is the status envelope present on every JSON response.
type BaseResp struct {
	Ret    int    `json:"ret"`
	ErrMsg string `json:"err_msg"`
}

// CheckBaseResp maps a platform ret code to a typed error, or nil when the
// response indicates success.
func CheckBaseResp(br BaseResp) error {
	switch br.Ret {
	case retOK:
		return nil
	case retSessionExpired, retNotLoggedIn:
		return apierrors.New(apierrors.KindAuth, br.Ret, "session expired or not logged in: %s", br.ErrMsg)
	case retFreqControl:
		return apierrors.New(apierrors.KindRateLimit, br.Ret, "request frequency limited: %s", br.ErrMsg)
	case retNoPermission:
		return apierrors.New(apierrors.KindPermission, br.Ret, "no permission to read this account: %s", br.ErrMsg)
	default:
		return apierrors.New(apierrors.KindUnknown, br.Ret, "platform error: %s", br.ErrMsg)
	}
}

// ListResponse is the article-list payload. Items are kept raw so a single
// malformed entry can be skipped without discarding the page.
type ListResponse struct {
	BaseResp   BaseResp          `json:"base_resp"`
	TotalCount int               `json:"app_msg_cnt"`
	RawItems   []json.RawMessage `json:"app_msg_list"`
}

// SearchResponse is the account-search payload.
type SearchResponse struct {
	BaseResp BaseResp         `json:"base_resp"`
	Total    int              `json:"total"`
	Accounts []AccountPayload `json:"list"`
}

// AccountPayload is one account entry in a search result.
type AccountPayload struct {
	FakeID   string `json:"fakeid"`
	Nickname string `json:"nickname"`
	Alias    string `json:"alias"`
}

// PollResponse is the QR scan-status payload.
type PollResponse struct {
	BaseResp    BaseResp `json:"base_resp"`
	Status      int      `json:"status"`
	RedirectURL string   `json:"redirect_url"`
}

// flexID tolerates the platform serializing article IDs as either a JSON
// string or a number depending on endpoint version.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type listItemPayload struct {
	AID           flexID `json:"aid"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	Digest        string `json:"digest"`
	Cover         string `json:"cover"`
	UpdateTime    int64  `json:"update_time"`
	CreateTime    int64  `json:"create_time"`
	IsOriginal    int    `json:"copyright_stat"`
	CopyrightType int    `json:"copyright_type"`
}

// ParseListItem converts one raw list entry into a ListItem. Entries missing
// a title or link are rejected so callers can skip them individually.
func ParseListItem(raw json.RawMessage) (article.ListItem, error) {
	var p listItemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return article.ListItem{}, apierrors.New(apierrors.KindParse, 0, "malformed list entry: %v", err)
	}
	if p.Title == "" || p.Link == "" {
		return article.ListItem{}, apierrors.New(apierrors.KindParse, 0, "list entry missing title or link")
	}
	id := string(p.AID)
	if id == "" {
		id = "t" + strconv.FormatInt(p.CreateTime, 10)
	}
	return article.ListItem{
		ID:            id,
		Title:         p.Title,
		Link:          p.Link,
		Digest:        p.Digest,
		Cover:         p.Cover,
		UpdateTime:    p.UpdateTime,
		CreateTime:    p.CreateTime,
		IsOriginal:    p.IsOriginal == 1,
		CopyrightType: p.CopyrightType,
	}, nil
}

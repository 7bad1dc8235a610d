package article

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Account identifies a content-publishing account on the platform.
// ID is the remote's opaque identifier (the "fakeid").
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResultSet is the aggregate of one account's fetched article list. Items
// are unique by link and keep their fetch order. TotalCount is the remote's
// authoritative count; len(Items) may fall short of it on a partial fetch.
type ResultSet struct {
	AccountID   string     `json:"accountId"`
	AccountName string     `json:"accountName"`
	TotalCount  int        `json:"totalCount"`
	FetchedAt   time.Time  `json:"fetchedAt"`
	Items       []ListItem `json:"items"`
}

// NewResultSet creates an empty result set for an account.
func NewResultSet(account Account) *ResultSet {
	return &ResultSet{
		AccountID:   account.ID,
		AccountName: account.Name,
		FetchedAt:   time.Now(),
	}
}

// Count returns the number of fetched items.
func (rs *ResultSet) Count() int {
	return len(rs.Items)
}

// IsComplete reports whether every article the remote knows about has been
// fetched.
func (rs *ResultSet) IsComplete() bool {
	return rs.Count() >= rs.TotalCount
}

// AddItems merges items into the set, dropping any whose link is already
// present. It returns how many were actually added.
func (rs *ResultSet) AddItems(items []ListItem) int {
	seen := make(map[string]struct{}, len(rs.Items))
	for _, existing := range rs.Items {
		seen[existing.Link] = struct{}{}
	}

	added := 0
	for _, item := range items {
		if _, dup := seen[item.Link]; dup {
			continue
		}
		seen[item.Link] = struct{}{}
		rs.Items = append(rs.Items, item)
		added++
	}
	return added
}

// Links returns all item permalinks in fetch order.
func (rs *ResultSet) Links() []string {
	links := make([]string, len(rs.Items))
	for i, item := range rs.Items {
		links[i] = item.Link
	}
	return links
}

// Titles returns all item titles in fetch order.
func (rs *ResultSet) Titles() []string {
	titles := make([]string, len(rs.Items))
	for i, item := range rs.Items {
		titles[i] = item.Title
	}
	return titles
}

// ByDateRange returns the items published within [from, to]. A zero bound
// leaves that side open.
func (rs *ResultSet) ByDateRange(from, to time.Time) []ListItem {
	var result []ListItem
	for _, item := range rs.Items {
		t := item.PublishTime()
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && t.After(to) {
			continue
		}
		result = append(result, item)
	}
	return result
}

// ByKeyword returns the items whose title or digest contains the keyword,
// case-insensitively.
func (rs *ResultSet) ByKeyword(keyword string) []ListItem {
	kw := strings.ToLower(keyword)
	var result []ListItem
	for _, item := range rs.Items {
		if strings.Contains(strings.ToLower(item.Title), kw) ||
			strings.Contains(strings.ToLower(item.Digest), kw) {
			result = append(result, item)
		}
	}
	return result
}

// OriginalOnly returns the items flagged as original content.
func (rs *ResultSet) OriginalOnly() []ListItem {
	var result []ListItem
	for _, item := range rs.Items {
		if item.IsOriginal {
			result = append(result, item)
		}
	}
	return result
}

// SortedByTime returns a copy of the items ordered by publish timestamp.
// Default is newest first; pass ascending=true for oldest first.
func (rs *ResultSet) SortedByTime(ascending bool) []ListItem {
	sorted := make([]ListItem, len(rs.Items))
	copy(sorted, rs.Items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ascending {
			return sorted[i].UpdateTime < sorted[j].UpdateTime
		}
		return sorted[i].UpdateTime > sorted[j].UpdateTime
	})
	return sorted
}

// MarshalJSON adds the derived fetchedCount field so persisted result sets
// can be inspected without parsing the items array.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	type alias ResultSet
	return json.Marshal(struct {
		*alias
		FetchedCount int `json:"fetchedCount"`
	}{
		alias:        (*alias)(rs),
		FetchedCount: rs.Count(),
	})
}

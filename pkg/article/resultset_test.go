package article

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []ListItem {
	return []ListItem{
		{ID: "1", Title: "Go Patterns", Link: "https://example.com/a", Digest: "concurrency", UpdateTime: 1700000000, IsOriginal: true},
		{ID: "2", Title: "Weekly Digest", Link: "https://example.com/b", UpdateTime: 1700086400},
		{ID: "3", Title: "Release Notes", Link: "https://example.com/c", Digest: "go release", UpdateTime: 1700172800, IsOriginal: true},
	}
}

func TestAddItemsDeduplicatesByLink(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct", Name: "Example"})

	added := rs.AddItems(sampleItems())
	assert.Equal(t, 3, added)
	assert.Equal(t, 3, rs.Count())

	// Re-adding the same page must change nothing.
	added = rs.AddItems(sampleItems())
	assert.Equal(t, 0, added)
	assert.Equal(t, 3, rs.Count())
}

func TestAddItemsDeduplicatesAfterRoundTrip(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.AddItems(sampleItems())

	data, err := json.Marshal(rs)
	require.NoError(t, err)

	var restored ResultSet
	require.NoError(t, json.Unmarshal(data, &restored))

	// Dedup state survives persistence, not just the original instance.
	added := restored.AddItems(sampleItems())
	assert.Equal(t, 0, added)
	assert.Equal(t, 3, restored.Count())
}

func TestAddItemsKeepsFetchOrder(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.AddItems(sampleItems())

	assert.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}, rs.Links())
}

func TestIsComplete(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.TotalCount = 5
	rs.AddItems(sampleItems())
	assert.False(t, rs.IsComplete())

	rs.TotalCount = 3
	assert.True(t, rs.IsComplete())
}

func TestByKeyword(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.AddItems(sampleItems())

	matches := rs.ByKeyword("go")
	require.Len(t, matches, 2)
	assert.Equal(t, "Go Patterns", matches[0].Title)
	assert.Equal(t, "Release Notes", matches[1].Title)

	assert.Empty(t, rs.ByKeyword("rust"))
}

func TestByDateRange(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.AddItems(sampleItems())

	from := time.Unix(1700080000, 0)
	matches := rs.ByDateRange(from, time.Time{})
	require.Len(t, matches, 2)

	to := time.Unix(1700090000, 0)
	matches = rs.ByDateRange(from, to)
	require.Len(t, matches, 1)
	assert.Equal(t, "Weekly Digest", matches[0].Title)
}

func TestOriginalOnly(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.AddItems(sampleItems())

	originals := rs.OriginalOnly()
	require.Len(t, originals, 2)
	for _, item := range originals {
		assert.True(t, item.IsOriginal)
	}
}

func TestSortedByTime(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct"})
	rs.AddItems(sampleItems())

	newest := rs.SortedByTime(false)
	assert.Equal(t, "Release Notes", newest[0].Title)

	oldest := rs.SortedByTime(true)
	assert.Equal(t, "Go Patterns", oldest[0].Title)

	// The underlying order is untouched.
	assert.Equal(t, "Go Patterns", rs.Items[0].Title)
}

func TestMarshalIncludesFetchedCount(t *testing.T) {
	rs := NewResultSet(Account{ID: "acct", Name: "Example"})
	rs.TotalCount = 10
	rs.AddItems(sampleItems())

	data, err := json.Marshal(rs)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, float64(3), decoded["fetchedCount"])
	assert.Equal(t, float64(10), decoded["totalCount"])
	assert.Equal(t, "acct", decoded["accountId"])
}

func TestListItemPublishDate(t *testing.T) {
	item := ListItem{UpdateTime: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC).Unix()}
	assert.Equal(t, item.PublishTime().Format("2006-01-02"), item.PublishDate())

	// Missing timestamp falls back to now rather than 1970.
	var empty ListItem
	assert.Equal(t, time.Now().Year(), empty.PublishTime().Year())
}

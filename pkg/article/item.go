package article

import "time"

// ListItem is one entry of an account's article list: lightweight metadata,
// no article body. Identity is the permalink; the remote's own id is less
// reliable than the link and is kept only as supporting data.
type ListItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	Digest        string `json:"digest,omitempty"`
	Cover         string `json:"cover,omitempty"`
	UpdateTime    int64  `json:"updateTime"`
	CreateTime    int64  `json:"createTime"`
	IsOriginal    bool   `json:"isOriginal"`
	CopyrightType int    `json:"copyrightType"`
}

// PublishTime returns the item's publish time, falling back to the current
// time when the remote supplied no timestamp.
func (i ListItem) PublishTime() time.Time {
	if i.UpdateTime > 0 {
		return time.Unix(i.UpdateTime, 0)
	}
	return time.Now()
}

// PublishDate returns the publish date formatted as YYYY-MM-DD.
func (i ListItem) PublishDate() string {
	return i.PublishTime().Format("2006-01-02")
}

// HasCover reports whether the item carries a cover image URL.
func (i ListItem) HasCover() bool {
	return i.Cover != ""
}

package types

// Comments defines a page of comments on a media item
type Comments struct {
	Data   []Comment `json:"data"`
	Paging Paging    `json:"paging"`
}

// Comment defines a comment on an Instagram media item. Replies nest one
// level; the Graph API does not model deeper threads.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	Username  string    `json:"username"`
	LikeCount int       `json:"like_count,omitempty"`
	Replies   []Comment `json:"replies,omitempty"`
}

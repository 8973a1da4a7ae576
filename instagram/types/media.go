package types

// Medias defines a page of Instagram media
type Medias struct {
	Data   []Media `json:"data"`
	Paging Paging  `json:"paging"`
}

// Paging holds the opaque pagination cursors returned by the Graph API. A
// cursor is only meaningful for the exact query that produced it.
type Paging struct {
	Cursors struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	} `json:"cursors,omitempty"`
}

// Media defines an Instagram media
type Media struct {
	ID            string  `json:"id"`
	Caption       string  `json:"caption,omitempty"`
	MediaType     string  `json:"media_type"`
	MediaURL      string  `json:"media_url"`
	ThumbnailURL  string  `json:"thumbnail_url,omitempty"`
	Permalink     string  `json:"permalink"`
	Username      string  `json:"username"`
	Timestamp     string  `json:"timestamp"`
	CommentsCount int     `json:"comments_count,omitempty"`
	LikeCount     int     `json:"like_count,omitempty"`
	Children      []Media `json:"children,omitempty"`
}

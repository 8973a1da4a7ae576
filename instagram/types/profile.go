package types

// Profile defines the user profile fields requested from the Graph API.
type Profile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	AccountType       string `json:"account_type"`
	MediaCount        int    `json:"media_count"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	Biography         string `json:"biography,omitempty"`
	Website           string `json:"website,omitempty"`
	FollowersCount    int    `json:"followers_count,omitempty"`
	FollowsCount      int    `json:"follows_count,omitempty"`
	Name              string `json:"name,omitempty"`
}

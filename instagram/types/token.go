package types

// TokenResponse is returned by the OAuth token endpoint when exchanging an
// authorization code for a short-lived access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
}

// LongLivedResponse is returned when exchanging a short-lived token for a
// long-lived one (grant_type=ig_exchange_token).
type LongLivedResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RefreshResponse is returned when refreshing a long-lived token
// (grant_type=ig_refresh_token).
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

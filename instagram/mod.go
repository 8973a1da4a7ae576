package instagram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohitkadwe19/instagram-integration/instagram/types"
	"github.com/tidwall/gjson"
)

// InstagramAPI defines the primitives we expect the Instagram API to provide
type InstagramAPI interface {
	// ExchangeCode trades a one-time authorization code for a short-lived
	// access token. A response without an access token is an error.
	ExchangeCode(code string) (types.TokenResponse, error)

	// ExchangeLongLivedToken trades a short-lived token for a long-lived one.
	ExchangeLongLivedToken(token string) (types.LongLivedResponse, error)

	// RefreshToken extends the lifetime of a long-lived token.
	RefreshToken(token string) (types.RefreshResponse, error)

	// GetProfile fetches the profile fields of the given user. The special id
	// "me" resolves to the owner of the token.
	GetProfile(userID, token string) (types.Profile, error)

	// GetMedia fetches one page of the user's media. The returned JSON is
	// relayed as-is apart from list normalization, so pagination cursors and
	// item fields pass through untouched.
	GetMedia(userID, token, after string) (json.RawMessage, error)

	// GetComments fetches one page of comments on a media item, normalized
	// the same way as GetMedia.
	GetComments(mediaID, token, after string) (json.RawMessage, error)

	// CreateComment posts a comment on a media item. A non-empty repliedTo
	// tags the new comment with a parent comment id; the Graph API treats all
	// comments as top-level and may or may not honor the tag as a true reply.
	CreateComment(mediaID, token, text, repliedTo string) (json.RawMessage, error)
}

// HTTPClient defines the functions we expect from an HTTP client
type HTTPClient interface {
	Get(url string) (resp *http.Response, err error)
	PostForm(url string, data url.Values) (resp *http.Response, err error)
}

// Config holds the upstream endpoints and app credentials. Base URLs are
// injected so tests and tunneled development setups can point elsewhere.
type Config struct {
	// OAuthBase is the host serving the authorization-code token endpoint,
	// e.g. https://api.instagram.com
	OAuthBase string
	// GraphBase is the Graph API host, e.g. https://graph.instagram.com
	GraphBase string

	ClientID     string
	ClientSecret string
	// RedirectURI must exactly match the URI registered with the upstream app
	// and used in the initial authorize redirect.
	RedirectURI string
}

const profileFields = "id,username,account_type,media_count," +
	"profile_picture_url,biography,website,followers_count,follows_count,name"

const mediaFields = "id,caption,media_type,media_url,thumbnail_url,permalink," +
	"timestamp,username,comments_count,like_count," +
	"children{id,media_type,media_url,thumbnail_url}"

const commentFields = "id,text,timestamp,username,like_count," +
	"replies{id,text,timestamp,username,like_count}"

// NewHTTPAPI returns a new initialized Instagram HTTP API
func NewHTTPAPI(conf Config, client HTTPClient) InstagramAPI {
	return &HTTPAPI{
		conf:   conf,
		client: client,
	}
}

// HTTPAPI implements the Instagram API over HTTP
//
// - implements InstagramAPI
type HTTPAPI struct {
	conf   Config
	client HTTPClient
}

// ExchangeCode implements InstagramAPI
func (h HTTPAPI) ExchangeCode(code string) (types.TokenResponse, error) {
	vals := url.Values{
		"client_id":     []string{h.conf.ClientID},
		"client_secret": []string{h.conf.ClientSecret},
		"grant_type":    []string{"authorization_code"},
		"redirect_uri":  []string{h.conf.RedirectURI},
		"code":          []string{code},
	}

	u := strings.TrimRight(h.conf.OAuthBase, "/") + "/oauth/access_token"

	resp, err := h.client.PostForm(u, vals)
	if err != nil {
		return types.TokenResponse{}, fmt.Errorf("failed to post '%s': %v", u, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return types.TokenResponse{}, statusError(resp)
	}

	decoder := json.NewDecoder(resp.Body)
	var token types.TokenResponse

	err = decoder.Decode(&token)
	if err != nil {
		return types.TokenResponse{}, fmt.Errorf("failed to decode response: %v", err)
	}

	if token.AccessToken == "" {
		return types.TokenResponse{}, fmt.Errorf("response contains no access token")
	}

	return token, nil
}

// ExchangeLongLivedToken implements InstagramAPI
func (h HTTPAPI) ExchangeLongLivedToken(token string) (types.LongLivedResponse, error) {
	vals := url.Values{
		"grant_type":    []string{"ig_exchange_token"},
		"client_secret": []string{h.conf.ClientSecret},
		"access_token":  []string{token},
	}

	u := h.graphURL("access_token", vals)

	var longLived types.LongLivedResponse

	err := h.getJSON(u, &longLived)
	if err != nil {
		return types.LongLivedResponse{}, err
	}

	if longLived.AccessToken == "" {
		return types.LongLivedResponse{}, fmt.Errorf("response contains no access token")
	}

	return longLived, nil
}

// RefreshToken implements InstagramAPI
func (h HTTPAPI) RefreshToken(token string) (types.RefreshResponse, error) {
	vals := url.Values{
		"grant_type":   []string{"ig_refresh_token"},
		"access_token": []string{token},
	}

	u := h.graphURL("refresh_access_token", vals)

	var refresh types.RefreshResponse

	err := h.getJSON(u, &refresh)
	if err != nil {
		return types.RefreshResponse{}, err
	}

	return refresh, nil
}

// GetProfile implements InstagramAPI
func (h HTTPAPI) GetProfile(userID, token string) (types.Profile, error) {
	vals := url.Values{
		"access_token": []string{token},
		"fields":       []string{profileFields},
	}

	u := h.graphURL(userID, vals)

	var profile types.Profile

	err := h.getJSON(u, &profile)
	if err != nil {
		return types.Profile{}, err
	}

	return profile, nil
}

// GetMedia implements InstagramAPI
func (h HTTPAPI) GetMedia(userID, token, after string) (json.RawMessage, error) {
	vals := url.Values{
		"access_token": []string{token},
		"fields":       []string{mediaFields},
	}

	if after != "" {
		vals.Set("after", after)
	}

	u := h.graphURL(userID+"/media", vals)

	return h.getList(u)
}

// GetComments implements InstagramAPI
func (h HTTPAPI) GetComments(mediaID, token, after string) (json.RawMessage, error) {
	vals := url.Values{
		"access_token": []string{token},
		"fields":       []string{commentFields},
	}

	if after != "" {
		vals.Set("after", after)
	}

	u := h.graphURL(mediaID+"/comments", vals)

	return h.getList(u)
}

// CreateComment implements InstagramAPI
func (h HTTPAPI) CreateComment(mediaID, token, text, repliedTo string) (json.RawMessage, error) {
	vals := url.Values{
		"message":      []string{text},
		"access_token": []string{token},
	}

	if repliedTo != "" {
		vals.Set("replied_to_comment_id", repliedTo)
	}

	u := strings.TrimRight(h.conf.GraphBase, "/") + "/" + mediaID + "/comments"

	resp, err := h.client.PostForm(u, vals)
	if err != nil {
		return nil, fmt.Errorf("failed to post '%s': %v", u, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, statusError(resp)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if !gjson.ValidBytes(buf) {
		return nil, fmt.Errorf("failed to decode response: invalid json")
	}

	return buf, nil
}

func (h HTTPAPI) graphURL(path string, vals url.Values) string {
	return strings.TrimRight(h.conf.GraphBase, "/") + "/" + path + "?" + vals.Encode()
}

func (h HTTPAPI) getJSON(u string, dest interface{}) error {
	resp, err := h.client.Get(u)
	if err != nil {
		return fmt.Errorf("failed to get '%s': %v", u, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return statusError(resp)
	}

	decoder := json.NewDecoder(resp.Body)

	err = decoder.Decode(dest)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

// getList fetches a paginated list endpoint and relays the body untouched,
// except that a bare JSON array is wrapped into the usual {data, paging}
// envelope. The upstream response shape has been observed to vary.
func (h HTTPAPI) getList(u string) (json.RawMessage, error) {
	resp, err := h.client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("failed to get '%s': %v", u, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, statusError(resp)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if !gjson.ValidBytes(buf) {
		return nil, fmt.Errorf("failed to decode response: invalid json")
	}

	if gjson.ParseBytes(buf).IsArray() {
		wrapped := make([]byte, 0, len(buf)+24)
		wrapped = append(wrapped, `{"data":`...)
		wrapped = append(wrapped, buf...)
		wrapped = append(wrapped, `,"paging":{}}`...)

		return wrapped, nil
	}

	return buf, nil
}

func statusError(resp *http.Response) error {
	buf, _ := io.ReadAll(resp.Body)

	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Body:       buf,
	}
}

// UpstreamError reports a non-2xx response from the upstream API. It carries
// the upstream status and body so the caller can relay them.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("http request failed with status %d: %s", e.StatusCode, e.Body)
}

package instagram

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/mohitkadwe19/instagram-integration/instagram/types"
	"github.com/stretchr/testify/require"
)

func fakeConfig() Config {
	return Config{
		OAuthBase:    "https://api.instagram.com",
		GraphBase:    "https://graph.instagram.com",
		ClientID:     "fakeID",
		ClientSecret: "fakeSecret",
		RedirectURI:  "https://example.com/auth/callback",
	}
}

func TestExchangeCodePostFail(t *testing.T) {
	client := fakeHTTPClient{
		err: errors.New("fake"),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.ExchangeCode("abc")
	require.EqualError(t, err, "failed to post 'https://api.instagram.com/oauth/access_token': fake")
}

func TestExchangeCodeBadStatus(t *testing.T) {
	client := fakeHTTPClient{
		statusCode: 400,
		body:       []byte("body"),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.ExchangeCode("abc")
	require.EqualError(t, err, "http request failed with status 400: body")
}

func TestExchangeCodeNoToken(t *testing.T) {
	client := fakeHTTPClient{
		statusCode: 200,
		body:       []byte(`{"error_type":"OAuthException"}`),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.ExchangeCode("abc")
	require.EqualError(t, err, "response contains no access token")
}

func TestExchangeCodeSuccess(t *testing.T) {
	token := types.TokenResponse{
		AccessToken: "short",
		UserID:      1234,
	}

	buff, err := json.Marshal(&token)
	require.NoError(t, err)

	client := fakeHTTPClient{
		body:       buff,
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.ExchangeCode("abc")
	require.NoError(t, err)

	require.Equal(t, token, resp)
	require.Equal(t, "https://api.instagram.com/oauth/access_token", client.url)

	require.Equal(t, "abc", client.form.Get("code"))
	require.Equal(t, "authorization_code", client.form.Get("grant_type"))
	require.Equal(t, "fakeID", client.form.Get("client_id"))
	require.Equal(t, "fakeSecret", client.form.Get("client_secret"))
	require.Equal(t, "https://example.com/auth/callback", client.form.Get("redirect_uri"))
}

// ----------------------------------------------------------------------------

func TestExchangeLongLivedTokenFail(t *testing.T) {
	client := fakeHTTPClient{
		statusCode: 500,
		body:       []byte("body"),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.ExchangeLongLivedToken("short")
	require.EqualError(t, err, "http request failed with status 500: body")
}

func TestExchangeLongLivedTokenSuccess(t *testing.T) {
	longLived := types.LongLivedResponse{
		AccessToken: "long",
		TokenType:   "bearer",
		ExpiresIn:   5184000,
	}

	buff, err := json.Marshal(&longLived)
	require.NoError(t, err)

	client := fakeHTTPClient{
		body:       buff,
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.ExchangeLongLivedToken("short")
	require.NoError(t, err)

	require.Equal(t, longLived, resp)

	expectedURL := "https://graph.instagram.com/access_token?" + url.Values{
		"grant_type":    []string{"ig_exchange_token"},
		"client_secret": []string{"fakeSecret"},
		"access_token":  []string{"short"},
	}.Encode()
	require.Equal(t, expectedURL, client.url)
}

// ----------------------------------------------------------------------------

func TestRefreshTokenSuccess(t *testing.T) {
	refresh := types.RefreshResponse{
		AccessToken: "refreshed",
		ExpiresIn:   5184000,
	}

	buff, err := json.Marshal(&refresh)
	require.NoError(t, err)

	client := fakeHTTPClient{
		body:       buff,
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.RefreshToken("long")
	require.NoError(t, err)

	require.Equal(t, refresh, resp)

	expectedURL := "https://graph.instagram.com/refresh_access_token?access_token=long&grant_type=ig_refresh_token"
	require.Equal(t, expectedURL, client.url)
}

// ----------------------------------------------------------------------------

func TestGetProfileBadStatus(t *testing.T) {
	client := fakeHTTPClient{
		statusCode: 500,
		body:       []byte("body"),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.GetProfile("me", "fake")
	require.EqualError(t, err, "http request failed with status 500: body")
}

func TestGetProfileSuccess(t *testing.T) {
	profile := types.Profile{
		ID:          "17841400000000000",
		Username:    "alice",
		AccountType: "BUSINESS",
		MediaCount:  3,
	}

	buff, err := json.Marshal(&profile)
	require.NoError(t, err)

	client := fakeHTTPClient{
		body:       buff,
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.GetProfile("me", "fake")
	require.NoError(t, err)

	require.Equal(t, profile, resp)

	expectedURL := "https://graph.instagram.com/me?" + url.Values{
		"access_token": []string{"fake"},
		"fields":       []string{profileFields},
	}.Encode()
	require.Equal(t, expectedURL, client.url)
}

// ----------------------------------------------------------------------------

func TestGetMediaGetFail(t *testing.T) {
	client := fakeHTTPClient{
		err: errors.New("fake"),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.GetMedia("me", "fake", "")
	require.Error(t, err)
}

func TestGetMediaBadStatus(t *testing.T) {
	client := fakeHTTPClient{
		statusCode: 500,
		body:       []byte("body"),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.GetMedia("me", "fake", "")
	require.EqualError(t, err, "http request failed with status 500: body")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, 500, upstream.StatusCode)
	require.Equal(t, []byte("body"), upstream.Body)
}

func TestGetMediaInvalidJSON(t *testing.T) {
	client := fakeHTTPClient{
		body:       []byte("invalid json"),
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.GetMedia("me", "fake", "")
	require.EqualError(t, err, "failed to decode response: invalid json")
}

// An object response must be relayed byte-for-byte, cursors included.
func TestGetMediaSuccess(t *testing.T) {
	body := []byte(`{"data":[{"id":"1","media_type":"IMAGE"}],"paging":{"cursors":{"after":"CURSOR1"}}}`)

	client := fakeHTTPClient{
		body:       body,
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.GetMedia("me", "fake", "CURSOR0")
	require.NoError(t, err)

	require.Equal(t, json.RawMessage(body), resp)

	expectedURL := "https://graph.instagram.com/me/media?" + url.Values{
		"access_token": []string{"fake"},
		"fields":       []string{mediaFields},
		"after":        []string{"CURSOR0"},
	}.Encode()
	require.Equal(t, expectedURL, client.url)
}

func TestGetMediaNormalizesBareArray(t *testing.T) {
	client := fakeHTTPClient{
		body:       []byte(`[{"id":"1"}]`),
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.GetMedia("me", "fake", "")
	require.NoError(t, err)

	require.JSONEq(t, `{"data":[{"id":"1"}],"paging":{}}`, string(resp))
}

// ----------------------------------------------------------------------------

func TestGetCommentsSuccess(t *testing.T) {
	comments := types.Comments{
		Data: []types.Comment{
			{ID: "c1", Text: "hello", Username: "alice"},
		},
	}

	buff, err := json.Marshal(&comments)
	require.NoError(t, err)

	client := fakeHTTPClient{
		body:       buff,
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.GetComments("media1", "fake", "")
	require.NoError(t, err)

	require.Equal(t, json.RawMessage(buff), resp)

	expectedURL := "https://graph.instagram.com/media1/comments?" + url.Values{
		"access_token": []string{"fake"},
		"fields":       []string{commentFields},
	}.Encode()
	require.Equal(t, expectedURL, client.url)
}

func TestGetCommentsNormalizesBareArray(t *testing.T) {
	client := fakeHTTPClient{
		body:       []byte(`[{"id":"c1","text":"hello"}]`),
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.GetComments("media1", "fake", "")
	require.NoError(t, err)

	require.JSONEq(t, `{"data":[{"id":"c1","text":"hello"}],"paging":{}}`, string(resp))
}

// ----------------------------------------------------------------------------

func TestCreateCommentBadStatus(t *testing.T) {
	client := fakeHTTPClient{
		statusCode: 403,
		body:       []byte(`{"error":{"message":"nope"}}`),
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.CreateComment("media1", "fake", "hello", "")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, 403, upstream.StatusCode)
}

func TestCreateCommentSuccess(t *testing.T) {
	client := fakeHTTPClient{
		body:       []byte(`{"id":"c2"}`),
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	resp, err := api.CreateComment("media1", "fake", "hello", "c1")
	require.NoError(t, err)

	require.Equal(t, json.RawMessage(`{"id":"c2"}`), resp)
	require.Equal(t, "https://graph.instagram.com/media1/comments", client.url)

	require.Equal(t, "hello", client.form.Get("message"))
	require.Equal(t, "fake", client.form.Get("access_token"))
	require.Equal(t, "c1", client.form.Get("replied_to_comment_id"))
}

func TestCreateCommentNoReply(t *testing.T) {
	client := fakeHTTPClient{
		body:       []byte(`{"id":"c2"}`),
		statusCode: 200,
	}

	api := NewHTTPAPI(fakeConfig(), &client)

	_, err := api.CreateComment("media1", "fake", "hello", "")
	require.NoError(t, err)

	require.False(t, client.form.Has("replied_to_comment_id"))
}

// ----------------------------------------------------------------------------
// Utility functions

type fakeHTTPClient struct {
	HTTPClient
	err        error
	body       []byte
	statusCode int
	url        string
	form       url.Values
	calls      int
}

func (h *fakeHTTPClient) Get(url string) (resp *http.Response, err error) {
	if h.err != nil {
		return nil, h.err
	}

	h.url = url
	h.calls++

	buff := bytes.NewBuffer(h.body)
	body := io.NopCloser(buff)

	return &http.Response{
		Body:       body,
		StatusCode: h.statusCode,
		Status:     strconv.Itoa(h.statusCode),
	}, h.err
}

func (h *fakeHTTPClient) PostForm(url string, data url.Values) (resp *http.Response, err error) {
	if h.err != nil {
		return nil, h.err
	}

	h.url = url
	h.form = data
	h.calls++

	buff := bytes.NewBuffer(h.body)
	body := io.NopCloser(buff)

	return &http.Response{
		Body:       body,
		StatusCode: h.statusCode,
		Status:     strconv.Itoa(h.statusCode),
	}, h.err
}

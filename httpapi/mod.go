package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohitkadwe19/instagram-integration/instagram"
	"github.com/mohitkadwe19/instagram-integration/session"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

type HTTP interface {
	Start() error
	Stop()
	GetAddr() net.Addr
}

type key int

const requestIDKey key = 0

// CookieName is the session cookie issued by the authorization flow. It holds
// an opaque store token, never the upstream access token.
const CookieName = "instagram_session"

// cookieMaxAge matches the upstream long-lived-token lifetime of 60 days.
const cookieMaxAge = 60 * 24 * 60 * 60

// Config holds the settings needed to build the authorize URL and the
// session cookie.
type Config struct {
	AuthorizeURL  string
	ClientID      string
	RedirectURI   string
	Scopes        string
	SecureCookies bool
}

// NewInstagramHTTP returns an HTTP server exposing the proxy API.
func NewInstagramHTTP(addr string, api instagram.InstagramAPI,
	sessions session.Store, conf Config, logger zerolog.Logger) HTTP {

	logger = logger.With().Str("role", "http").Logger()
	logger.Info().Msg("Server is starting...")

	nextRequestID := func() string {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}

	p := proxy{
		api:      api,
		sessions: sessions,
		conf:     conf,
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/auth/url", p.getAuthURL)
	mux.HandleFunc("/auth/callback", p.handleCallback)
	mux.HandleFunc("/auth/refresh", p.handleRefresh)
	mux.HandleFunc("/auth/logout", p.handleLogout)
	mux.HandleFunc("/profile", p.getProfile)
	mux.HandleFunc("/media", p.getMedia)
	mux.HandleFunc("/comments/", p.handleComments)
	mux.HandleFunc("/webhook", p.handleWebhook)

	server := &http.Server{
		Addr:         addr,
		Handler:      tracing(nextRequestID)(logging(logger)(cors(mux))),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return &HTTPAPI{
		logger: logger,
		server: server,
		quit:   make(chan struct{}),
	}
}

type HTTPAPI struct {
	logger zerolog.Logger
	server *http.Server
	quit   chan struct{}
	ln     net.Listener
}

func (n *HTTPAPI) Start() error {
	ln, err := net.Listen("tcp", n.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create conn '%s': %v", n.server.Addr, err)
	}

	n.ln = ln

	done := make(chan bool)

	go func() {
		<-n.quit
		n.logger.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n.server.SetKeepAlivesEnabled(false)

		err := n.server.Shutdown(ctx)
		if err != nil {
			n.logger.Err(err).Msg("Could not gracefully shutdown the server")
		}
		close(done)
	}()

	n.logger.Info().Msgf("Server is ready to handle requests at %s", ln.Addr().String())

	err = n.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to listen on %s: %v", ln.Addr().String(), err)
	}

	<-done
	n.logger.Info().Msg("Server stopped")

	return nil
}

func (n HTTPAPI) Stop() {
	n.logger.Info().Msg("stopping")
	// we don't close it so it can be called multiple times without harm
	select {
	case n.quit <- struct{}{}:
	default:
	}
}

func (n HTTPAPI) GetAddr() net.Addr {
	if n.ln == nil {
		return nil
	}

	return n.ln.Addr()
}

// proxy holds the handlers of the API surface. Each handler is one
// synchronous chain of upstream calls with no retries: the first failure is
// surfaced to the caller.
type proxy struct {
	api      instagram.InstagramAPI
	sessions session.Store
	conf     Config
	logger   zerolog.Logger
}

// getAuthURL returns the upstream OAuth dialog URL the UI should redirect to.
func (p proxy) getAuthURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	u := fmt.Sprintf("%s?client_id=%s&redirect_uri=%s&scope=%s&response_type=code",
		p.conf.AuthorizeURL, p.conf.ClientID,
		url.QueryEscape(p.conf.RedirectURI), p.conf.Scopes)

	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// handleCallback completes the authorization flow: code for short-lived
// token, short-lived for long-lived (non-fatal on failure), profile fetch,
// then exactly one session cookie. Failures redirect to the error page with a
// machine-readable code and set no cookie.
func (p proxy) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		redirectError(w, r, "authorization_code_missing")
		return
	}

	token, err := p.api.ExchangeCode(code)
	if err != nil {
		p.logger.Err(err).Msg("failed to exchange code")
		redirectError(w, r, "token_exchange_failed")
		return
	}

	accessToken := token.AccessToken
	expires := time.Now().Add(time.Hour)

	longLived, err := p.api.ExchangeLongLivedToken(token.AccessToken)
	if err != nil {
		// non-fatal, fall back to the short-lived token
		p.logger.Warn().Err(err).Msg("failed to exchange long-lived token")
	} else {
		accessToken = longLived.AccessToken
		expires = time.Now().Add(time.Duration(longLived.ExpiresIn) * time.Second)
	}

	profile, err := p.api.GetProfile("me", accessToken)
	if err != nil {
		p.logger.Err(err).Msg("failed to fetch profile")
		redirectError(w, r, "profile_fetch_failed")
		return
	}

	sess := session.Session{
		AccessToken:       accessToken,
		UserID:            profile.ID,
		Username:          profile.Username,
		AccountType:       profile.AccountType,
		MediaCount:        profile.MediaCount,
		ProfilePictureURL: profile.ProfilePictureURL,
		Biography:         profile.Biography,
		Website:           profile.Website,
		FollowersCount:    profile.FollowersCount,
		FollowsCount:      profile.FollowsCount,
		Name:              profile.Name,
		TokenExpires:      expires,
	}

	sessToken, err := p.sessions.Create(sess)
	if err != nil {
		p.logger.Err(err).Msg("failed to create session")
		redirectError(w, r, "internal_server_error")
		return
	}

	http.SetCookie(w, p.sessionCookie(sessToken, cookieMaxAge))

	http.Redirect(w, r, "/auth/success?username="+url.QueryEscape(profile.Username),
		http.StatusFound)
}

// handleRefresh extends the session's long-lived token in place.
func (p proxy) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	sessToken, sess, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	refresh, err := p.api.RefreshToken(sess.AccessToken)
	if err != nil {
		p.writeUpstreamError(w, err)
		return
	}

	sess.AccessToken = refresh.AccessToken
	sess.TokenExpires = time.Now().Add(time.Duration(refresh.ExpiresIn) * time.Second)

	err = p.sessions.Update(sessToken, sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update session", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"tokenExpires": sess.TokenExpires,
	})
}

// handleLogout destroys the session and expires the cookie.
func (p proxy) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	cookie, err := r.Cookie(CookieName)
	if err == nil {
		err = p.sessions.Delete(cookie.Value)
		if err != nil {
			p.logger.Err(err).Msg("failed to delete session")
		}
	}

	http.SetCookie(w, p.sessionCookie("", -1))

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// getProfile relays the session user's profile.
func (p proxy) getProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	_, sess, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	profile, err := p.api.GetProfile(sess.UserID, sess.AccessToken)
	if err != nil {
		p.writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// getMedia relays one page of the session user's media. The pagination
// cursor is forwarded verbatim; the proxy keeps no cursor state.
func (p proxy) getMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	_, sess, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	media, err := p.api.GetMedia(sess.UserID, sess.AccessToken, r.URL.Query().Get("after"))
	if err != nil {
		p.writeUpstreamError(w, err)
		return
	}

	writeRaw(w, http.StatusOK, media)
}

// handleComments serves GET (list) and POST (create) on
// /comments/{mediaId}.
func (p proxy) handleComments(w http.ResponseWriter, r *http.Request) {
	mediaID := strings.TrimPrefix(r.URL.Path, "/comments/")
	if mediaID == "" || strings.Contains(mediaID, "/") {
		writeError(w, http.StatusBadRequest, "Media ID is required", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		p.getComments(w, r, mediaID)
	case http.MethodPost:
		p.postComment(w, r, mediaID)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (p proxy) getComments(w http.ResponseWriter, r *http.Request, mediaID string) {
	_, sess, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	comments, err := p.api.GetComments(mediaID, sess.AccessToken, r.URL.Query().Get("after"))
	if err != nil {
		p.writeUpstreamError(w, err)
		return
	}

	writeRaw(w, http.StatusOK, comments)
}

type commentRequest struct {
	Text      string `json:"text"`
	RepliedTo string `json:"replied_to_comment_id"`
}

func (p proxy) postComment(w http.ResponseWriter, r *http.Request, mediaID string) {
	_, sess, ok := p.authenticate(w, r)
	if !ok {
		return
	}

	var req commentRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	// validated before any upstream call
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Comment text is required", nil)
		return
	}

	created, err := p.api.CreateComment(mediaID, sess.AccessToken, req.Text, req.RepliedTo)
	if err != nil {
		p.writeUpstreamError(w, err)
		return
	}

	writeRaw(w, http.StatusCreated, created)
}

// handleWebhook answers the platform's subscription-verification handshake.
// The challenge is echoed byte-for-byte; any transformation breaks
// verification. Event deliveries are acknowledged without processing.
func (p proxy) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		challenge := q.Get("hub.challenge")

		if q.Get("hub.mode") == "subscribe" && challenge != "" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(challenge))
			return
		}

		writeError(w, http.StatusBadRequest, "Invalid verification request", nil)
	case http.MethodPost:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// authenticate resolves the session cookie against the store. On failure it
// writes a 401 response and reports ok=false; no upstream call is made.
func (p proxy) authenticate(w http.ResponseWriter, r *http.Request) (string, session.Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized - No session found", nil)
		return "", session.Session{}, false
	}

	sess, err := p.sessions.Get(cookie.Value)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Unauthorized - Invalid session", nil)
		return "", session.Session{}, false
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		return "", session.Session{}, false
	}

	if sess.AccessToken == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized - Invalid session data", nil)
		return "", session.Session{}, false
	}

	return cookie.Value, sess, true
}

func (p proxy) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   p.conf.SecureCookies,
	}
}

// writeUpstreamError relays an upstream failure with its original status and
// body, or reports a local failure as a 500.
func (p proxy) writeUpstreamError(w http.ResponseWriter, err error) {
	var upstream *instagram.UpstreamError

	if errors.As(err, &upstream) {
		var details json.RawMessage
		if gjson.ValidBytes(upstream.Body) {
			details = upstream.Body
		} else {
			details, _ = json.Marshal(string(upstream.Body))
		}

		writeError(w, upstream.StatusCode, "Upstream request failed", details)
		return
	}

	p.logger.Err(err).Msg("upstream call failed")
	writeError(w, http.StatusInternalServerError, "Internal server error", nil)
}

func redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/auth/error?error="+url.QueryEscape(code), http.StatusFound)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, details json.RawMessage) {
	writeJSON(w, status, errorBody{
		Error:   msg,
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		http.Error(w, fmt.Errorf("failed to encode: %v", err).Error(),
			http.StatusInternalServerError)
	}
}

func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// cors mirrors the permissive development headers of the original frontend
// integration and short-circuits preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"X-CSRF-Token, X-Requested-With, Accept, Accept-Version, "+
				"Content-Length, Content-MD5, Content-Type, Date, X-Api-Version")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// logging is a utility function that logs the http server events
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				requestID, ok := r.Context().Value(requestIDKey).(string)
				if !ok {
					requestID = "unknown"
				}
				logger.Info().Str("requestID", requestID).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Str("remoteAddr", r.RemoteAddr).
					Str("agent", r.UserAgent()).Msg("")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// tracing is a utility function that adds header tracing
func tracing(nextRequestID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = nextRequestID()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set("X-Request-Id", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

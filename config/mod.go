package config

import (
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the environment-driven settings. Upstream base URLs are plain
// configuration so development tunnels point the proxy elsewhere without
// touching the HTTP client.
type Config struct {
	Instagram struct {
		ClientID     string `env:"INSTAGRAM_CLIENT_ID" env-required:"true"`
		ClientSecret string `env:"INSTAGRAM_CLIENT_SECRET" env-required:"true"`
		OAuthURL     string `env:"INSTAGRAM_OAUTH_URL" env-default:"https://api.instagram.com"`
		GraphURL     string `env:"INSTAGRAM_GRAPH_URL" env-default:"https://graph.instagram.com"`
		AuthorizeURL string `env:"INSTAGRAM_AUTHORIZE_URL" env-default:"https://www.facebook.com/v17.0/dialog/oauth"`
		Scopes       string `env:"INSTAGRAM_SCOPES" env-default:"instagram_basic,instagram_manage_comments,instagram_manage_insights,pages_show_list"`
	}
	Server struct {
		// BaseURL is the public base of this service, used to derive the
		// OAuth redirect URI. It must match the URI registered upstream.
		BaseURL       string `env:"BASE_URL" env-default:"http://localhost:3333"`
		SecureCookies bool   `env:"SECURE_COOKIES" env-default:"false"`
	}
}

// RedirectURI returns the OAuth callback URI derived from the public base URL.
func (c Config) RedirectURI() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback"
}

// Load reads the configuration from the given env file when it exists, then
// from the process environment.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		_, err := os.Stat(path)
		if err == nil {
			err = cleanenv.ReadConfig(path, &cfg)
			return cfg, err
		}
	}

	err := cleanenv.ReadEnv(&cfg)

	return cfg, err
}

// Package config loads the application configuration from environment
// variables. The defaults target the lo.ink demo deployment, mirroring the
// identifiers the mobile client shipped with.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the client needs to talk to the lo.ink API.
type Config struct {
	APIURL        string `env:"LOFEED_API_URL" envDefault:"https://api.lo.ink/v1"`
	AuthURL       string `env:"LOFEED_AUTH_URL" envDefault:"https://api.lo.ink/v1"`
	ClientID      string `env:"LOFEED_CLIENT_ID" envDefault:"1"`
	ClientSecret  string `env:"LOFEED_CLIENT_SECRET"`
	RedirectURI   string `env:"LOFEED_REDIRECT_URI" envDefault:"default"`
	Scope         string `env:"LOFEED_SCOPE"`
	DatabasePath  string `env:"LOFEED_DATABASE" envDefault:"lofeed.db"`
	SessionSecret string `env:"LOFEED_SESSION_SECRET" envDefault:"lofeed-session"`

	// Demo credentials for the direct (non-interactive) grant fallback.
	// Not a production login method; see the direct acquirer.
	Username  string `env:"LOFEED_USERNAME" envDefault:"yusifm.mamedov@mail.ru"`
	Password  string `env:"LOFEED_PASSWORD" envDefault:"13579LO$"`
	PushToken string `env:"LOFEED_PUSH_TOKEN" envDefault:"8F3F9678B591116F8338F7BD4FDC5BD1C8A8B399D7E50B06F1869EA1E1B7606C"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

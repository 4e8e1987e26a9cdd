// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/beo-intake/internal/secrets"
	"github.com/pdiddy/beo-intake/pkg/types"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.upload_timeout", types.DefaultUploadTimeout)
	v.SetDefault("api.status_timeout", types.DefaultStatusTimeout)
	v.SetDefault("api.user_agent", "beo-intake/"+version)

	v.SetDefault("poll.interval", types.DefaultPollInterval)

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.read_timeout", 0)
	v.SetDefault("server.write_timeout", 2*types.DefaultUploadTimeout)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.session_ttl", types.DefaultSessionTTL)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("history.path", types.DefaultHistoryPath)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// bindEnvFallbacks lets the connection settings also come from the
// variables the browser build of the form used.
func bindEnvFallbacks(v *viper.Viper) {
	v.BindEnv("api.url", "BEO_INTAKE_API_URL", "NEXT_PUBLIC_API_URL")
	v.BindEnv("api.key", "BEO_INTAKE_API_KEY", "NEXT_PUBLIC_API_KEY")
}

// loadConfig decodes v into a Config. An API key set in configuration or
// the environment wins over the one in the secrets directory.
func loadConfig(v *viper.Viper, store secrets.Store) (types.Config, error) {
	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}

	c.API.URL = strings.TrimSpace(c.API.URL)
	c.API.Key = strings.TrimSpace(c.API.Key)
	if c.API.Key == "" {
		c.API.Key = store.Get(secrets.APIKeyFile, "")
	}
	return c, nil
}

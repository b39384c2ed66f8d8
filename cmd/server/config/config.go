// Package config holds the runtime configuration for the versify auth server.
// Values start from Default and are overlaid by the go-config container from
// file and environment sources before Validate runs.
package config

import (
	"fmt"
)

type BaseConfig struct {
	App         App         `json:"app"`
	Server      Server      `json:"server"`
	Auth        Auth        `json:"auth"`
	Persistence Persistence `json:"persistence"`
	Mailer      Mailer      `json:"mailer"`
}

type App struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Debug   bool   `json:"debug"`
}

type Server struct {
	Address string `json:"address"`
}

type Auth struct {
	SigningKey string `json:"signing_key"`
	// RetiredSigningKeys keeps previously active keys accepted for
	// validation during a rotation. New tokens are always signed with
	// SigningKey.
	RetiredSigningKeys    []string `json:"retired_signing_keys"`
	SigningMethod         string   `json:"signing_method"`
	ContextKey            string   `json:"context_key"`
	TokenExpiration       int      `json:"token_expiration"`
	ExtendedTokenDuration int      `json:"extended_token_duration"`
	TokenLookup           string   `json:"token_lookup"`
	AuthScheme            string   `json:"auth_scheme"`
	Issuer                string   `json:"issuer"`
	Audience              []string `json:"audience"`
	PurposeTokenSecret    string   `json:"purpose_token_secret"`
}

type Persistence struct {
	Driver                string `json:"driver"`
	DSN                   string `json:"dsn"`
	Debug                 bool   `json:"debug"`
	Seed                  bool   `json:"seed"`
	PingTimeoutExpression string `json:"ping_timeout"`
}

type Mailer struct {
	// Provider selects the delivery backend, "log" or "smtp".
	Provider string `json:"provider"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Default returns a config suitable for local development. The signing key is
// intentionally left empty, it has to come from a config file or environment.
func Default() *BaseConfig {
	return &BaseConfig{
		App: App{
			Name:    "versify",
			BaseURL: "http://localhost:8573",
			Debug:   true,
		},
		Server: Server{
			Address: ":8573",
		},
		Auth: Auth{
			SigningMethod:         "HS256",
			ContextKey:            "user",
			TokenExpiration:       60,
			ExtendedTokenDuration: 10080,
			TokenLookup:           "header:Authorization,cookie:user",
			AuthScheme:            "Bearer",
			Issuer:                "versify",
			Audience:              []string{"versify:web"},
		},
		Persistence: Persistence{
			Driver:                "sqlite",
			DSN:                   "file:versify.db?cache=shared&_pragma=foreign_keys(1)",
			Seed:                  true,
			PingTimeoutExpression: "5s",
		},
		Mailer: Mailer{
			Provider: "log",
			Port:     587,
			From:     "no-reply@versify.local",
		},
	}
}

func (a BaseConfig) Validate() error {
	if a.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}

	if a.Auth.TokenExpiration <= 0 {
		return fmt.Errorf("auth.token_expiration must be a positive number of minutes")
	}

	if a.Persistence.DSN == "" {
		return fmt.Errorf("persistence.dsn is required")
	}

	return nil
}

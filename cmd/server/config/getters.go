package config

import (
	"fmt"
	"time"
)

func (a BaseConfig) GetApp() App {
	return a.App
}

func (a BaseConfig) GetServer() Server {
	return a.Server
}

func (a BaseConfig) GetAuth() Auth {
	return a.Auth
}

func (a BaseConfig) GetPersistence() Persistence {
	return a.Persistence
}

func (a BaseConfig) GetMailer() Mailer {
	return a.Mailer
}

func (a App) GetName() string {
	return a.Name
}

func (a App) GetBaseURL() string {
	return a.BaseURL
}

func (a App) GetDebug() bool {
	return a.Debug
}

func (s Server) GetAddress() string {
	return s.Address
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetRetiredSigningKeys() []string {
	return a.RetiredSigningKeys
}

func (a Auth) GetSigningMethod() string {
	return a.SigningMethod
}

func (a Auth) GetContextKey() string {
	return a.ContextKey
}

func (a Auth) GetTokenExpiration() int {
	return a.TokenExpiration
}

func (a Auth) GetExtendedTokenDuration() int {
	return a.ExtendedTokenDuration
}

func (a Auth) GetTokenLookup() string {
	return a.TokenLookup
}

func (a Auth) GetAuthScheme() string {
	return a.AuthScheme
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

// GetPurposeTokenSecret falls back to the signing key so a single secret is
// enough to run the server.
func (a Auth) GetPurposeTokenSecret() string {
	if a.PurposeTokenSecret != "" {
		return a.PurposeTokenSecret
	}
	return a.SigningKey
}

func (p Persistence) GetDriver() string {
	return p.Driver
}

func (p Persistence) GetDSN() string {
	return p.DSN
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetSeed() bool {
	return p.Seed
}

func (p Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

func (m Mailer) GetProvider() string {
	return m.Provider
}

func (m Mailer) GetHost() string {
	return m.Host
}

func (m Mailer) GetPort() int {
	return m.Port
}

func (m Mailer) GetUsername() string {
	return m.Username
}

func (m Mailer) GetPassword() string {
	return m.Password
}

func (m Mailer) GetFrom() string {
	return m.From
}

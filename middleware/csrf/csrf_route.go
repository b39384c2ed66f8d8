package csrf

import "github.com/goliatone/go-router"

// RouteConfig controls how the CSRF token bootstrap endpoint behaves.
type RouteConfig struct {
	// Path is the route registered for retrieving the CSRF token.
	Path string
	// ContextKey is the context key where the middleware stored the token.
	ContextKey string
	// RouteName is the name assigned to the registered route.
	RouteName string
}

const (
	defaultRoutePath = "/csrf"
	defaultRouteName = "auth.csrf.get"
)

// TokenPayload is the bootstrap endpoint response. Clients embed the token
// under FieldName for form posts or echo it back in HeaderName.
type TokenPayload struct {
	Token      string `json:"token"`
	FieldName  string `json:"field_name"`
	HeaderName string `json:"header_name"`
}

func (c RouteConfig) withDefaults() RouteConfig {
	if c.Path == "" {
		c.Path = defaultRoutePath
	}
	if c.ContextKey == "" {
		c.ContextKey = DefaultContextKey
	}
	if c.RouteName == "" {
		c.RouteName = defaultRouteName
	}
	return c
}

// RegisterRoutes registers a GET endpoint that hands out the CSRF token for
// the current session. The middleware must run before it so the token is
// already in the request context.
func RegisterRoutes[T any](app router.Router[T], cfg ...RouteConfig) {
	conf := RouteConfig{}
	if len(cfg) > 0 {
		conf = cfg[0]
	}
	conf = conf.withDefaults()
	app.Get(conf.Path, tokenHandler(conf)).SetName(conf.RouteName)
}

func tokenHandler(cfg RouteConfig) router.HandlerFunc {
	return func(ctx router.Context) error {
		token, _ := ctx.Locals(cfg.ContextKey).(string)
		if token == "" {
			return ctx.JSON(router.StatusUnauthorized, map[string]string{
				"error": ErrTokenMissing.Error(),
			})
		}

		payload := TokenPayload{
			Token:      token,
			FieldName:  DefaultFormFieldName,
			HeaderName: DefaultHeaderName,
		}
		if v, ok := ctx.Locals(cfg.ContextKey + "_field").(string); ok && v != "" {
			payload.FieldName = v
		}
		if v, ok := ctx.Locals(cfg.ContextKey + "_header").(string); ok && v != "" {
			payload.HeaderName = v
		}

		// Token responses must never land in a shared cache.
		ctx.SetHeader("Cache-Control", "no-store, max-age=0")
		ctx.SetHeader("Pragma", "no-cache")
		ctx.SetHeader("Expires", "0")

		// The token also travels as a response header so single page clients
		// can pick it up without parsing the body.
		ctx.SetHeader(payload.HeaderName, token)

		return ctx.JSON(router.StatusOK, payload)
	}
}

package app

import (
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/artpar/waterspout/adapters/random"
	"github.com/artpar/waterspout/adapters/securecookie"
	"github.com/artpar/waterspout/adapters/template"
	"github.com/artpar/waterspout/adapters/tracing"
	"github.com/artpar/waterspout/domain/route"
	"github.com/artpar/waterspout/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is one built instance of a container. Servers built from the same
// container share no mutable state.
type Server struct {
	handler     http.Handler
	routes      []route.Route
	templates   *template.Environment
	settings    Settings
	containerID string
}

// Build creates a server from the current routes, template paths, filters
// and identity loader. Each call returns an independent instance.
func (c *Container) Build() (*Server, error) {
	c.mu.Lock()
	routes := append([]route.Route(nil), c.routes...)
	paths := append([]string(nil), c.templatePaths...)
	filters := make(map[string]any, len(c.filters))
	for k, v := range c.filters {
		filters[k] = v
	}
	loader := c.loader
	c.mu.Unlock()

	settings := c.settings

	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	codec, err := c.cookieCodec()
	if err != nil {
		return nil, err
	}

	env, err := template.New(paths, filters, template.Options{
		AutoReload: settings.AutoReload,
		Logger:     c.logger,
		Metrics:    c.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("template environment: %w", err)
	}

	srv := &Server{
		routes:      routes,
		templates:   env,
		settings:    settings,
		containerID: c.id,
	}

	rt := &web.Runtime{
		Codec:           codec,
		Cookie:          settings.Cookie,
		Renderer:        env,
		Loader:          loader,
		LoginURL:        settings.LoginURL,
		StaticURLPrefix: settings.StaticURLPrefix,
		ReverseURL:      srv.URLFor,
		Logger:          c.logger,
		Metrics:         c.metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(web.ServerHeader(settings.ServerName))
	r.Use(web.LoggingMiddleware(c.logger))
	if c.metrics != nil {
		r.Use(c.metrics.Middleware)
	}
	if c.traced {
		r.Use(tracing.Middleware(c.tracing...))
	}
	r.Use(middleware.Recoverer)
	r.Use(web.Middleware(rt))
	r.Use(c.middleware...)

	mounted := make(map[string]bool, len(routes))
	for _, rte := range routes {
		if rte.Handler == nil {
			env.Close()
			return nil, &RoutePatternError{Pattern: rte.Pattern, Reason: "nil handler"}
		}
		// The first route for a pattern wins, as in registration order.
		if mounted[rte.Pattern] {
			c.logger.Warn().Str("pattern", rte.Pattern).Msg("duplicate route pattern ignored")
			continue
		}
		info := web.RouteInfo{Name: rte.Name, Pattern: rte.Pattern, Args: rte.Args}
		if err := mount(r, rte.Pattern, web.WithRoute(info, rte.Handler)); err != nil {
			env.Close()
			return nil, err
		}
		mounted[rte.Pattern] = true
	}

	if settings.StaticPath != "" && strings.HasPrefix(settings.StaticURLPrefix, "/") {
		prefix := strings.TrimSuffix(settings.StaticURLPrefix, "/")
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(settings.StaticPath)))
		if err := mount(r, prefix+"/*", files); err != nil {
			env.Close()
			return nil, err
		}
	}

	srv.handler = r
	return srv, nil
}

// mount registers a route, turning the router's panic on a malformed
// pattern into an error.
func mount(r chi.Router, pattern string, h http.Handler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RoutePatternError{Pattern: pattern, Reason: strings.TrimPrefix(fmt.Sprint(p), "chi: ")}
		}
	}()
	r.Handle(pattern, h)
	return nil
}

func validateFilters(filters map[string]any) error {
	for name, fn := range filters {
		if !template.ValidFilterName(name) {
			return &FilterNameError{Name: name, Reason: "not an identifier"}
		}
		if slices.Contains(template.BoundFuncs, name) {
			return &FilterNameError{Name: name, Reason: "reserved for request helpers"}
		}
		v := reflect.ValueOf(fn)
		if v.Kind() != reflect.Func || v.IsNil() {
			return &FilterNameError{Name: name, Reason: "not a function"}
		}
		if n := v.Type().NumOut(); n == 0 || n > 2 {
			return &FilterNameError{Name: name, Reason: "must return one value, or a value and an error"}
		}
	}
	return nil
}

func (c *Container) cookieCodec() (*securecookie.Codec, error) {
	secret := c.settings.CookieSecret
	if secret == "" {
		generated, err := random.Secret(c.random)
		if err != nil {
			return nil, fmt.Errorf("generate cookie secret: %w", err)
		}
		secret = generated
		c.logger.Warn().Msg("cookie_secret is not set; using a random secret, sessions will not survive a restart")
	}
	return securecookie.New(secret, securecookie.Options{
		Encrypt: c.settings.EncryptCookies,
		MaxAge:  c.settings.Cookie.MaxAge,
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Routes returns the route table the server was built from.
func (s *Server) Routes() []route.Route {
	return append([]route.Route(nil), s.routes...)
}

// URLFor builds the path of the named route with positional params.
func (s *Server) URLFor(name string, params ...string) (string, error) {
	r, ok := route.Find(s.routes, name)
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownRoute)
	}
	return r.URL(params...)
}

// Templates returns the server's template environment.
func (s *Server) Templates() *template.Environment {
	return s.templates
}

// Settings returns the settings the server was built with.
func (s *Server) Settings() Settings {
	return s.settings
}

// ContainerID returns the ID of the container that built the server.
func (s *Server) ContainerID() string {
	return s.containerID
}

// Close releases the template watcher.
func (s *Server) Close() error {
	return s.templates.Close()
}

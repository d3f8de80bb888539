package app

import (
	"fmt"
	"maps"
	"net/http"
	"sync"
	"weak"

	"github.com/artpar/waterspout/adapters/idgen"
	"github.com/artpar/waterspout/adapters/metrics"
	"github.com/artpar/waterspout/adapters/random"
	"github.com/artpar/waterspout/adapters/tracing"
	"github.com/artpar/waterspout/domain/route"
	"github.com/artpar/waterspout/ports"
	"github.com/artpar/waterspout/testclient"
	"github.com/artpar/waterspout/web"
	"github.com/rs/zerolog"
)

// Settings configure the servers a container builds.
type Settings struct {
	// CookieSecret signs session cookies. When empty a random secret is
	// generated per build and sessions do not survive a restart.
	CookieSecret string
	// EncryptCookies additionally encrypts session cookies.
	EncryptCookies bool
	// Cookie holds the session cookie attributes. A zero value means
	// web.DefaultCookieOptions; otherwise only empty fields are defaulted.
	Cookie web.CookieOptions

	// LoginURL is where LoginRequired sends anonymous visitors.
	LoginURL string

	// TemplatePath is the container's own template directory, searched
	// before any module's.
	TemplatePath string
	// AutoReload re-parses templates when they change on disk.
	AutoReload bool

	// StaticPath is served under StaticURLPrefix when set.
	StaticPath      string
	StaticURLPrefix string

	// ServerName is sent as the Server header. Defaults to
	// "waterspout/<version>".
	ServerName string
}

func (s Settings) withDefaults() Settings {
	def := web.DefaultCookieOptions()
	if s.Cookie == (web.CookieOptions{}) {
		s.Cookie = def
	}
	if s.Cookie.Name == "" {
		s.Cookie.Name = def.Name
	}
	if s.Cookie.Path == "" {
		s.Cookie.Path = def.Path
	}
	if s.Cookie.MaxAge == 0 {
		s.Cookie.MaxAge = def.MaxAge
	}
	if s.Cookie.SameSite == 0 {
		s.Cookie.SameSite = def.SameSite
	}
	if s.StaticURLPrefix == "" {
		s.StaticURLPrefix = "/static/"
	}
	if s.ServerName == "" {
		s.ServerName = ServerName()
	}
	return s
}

// Container aggregates routes, template paths, filters and at most one
// identity loader from itself and its registered modules.
type Container struct {
	mu sync.Mutex

	id       string
	settings Settings

	routes        []route.Route
	templatePaths []string
	filters       map[string]any
	loader        web.IdentityLoader
	loaderOwner   string
	modules       []*Module

	logger     zerolog.Logger
	metrics    *metrics.Collector
	middleware []func(http.Handler) http.Handler
	tracing    []tracing.Option
	traced     bool
	random     ports.Random
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger for the container and the servers it builds.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithMetrics records request, session and template metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Container) {
		c.metrics = m
	}
}

// WithMiddleware appends middleware that runs inside the session runtime,
// just before route handlers.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(c *Container) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithTracing enables a span per request.
func WithTracing(opts ...tracing.Option) Option {
	return func(c *Container) {
		c.traced = true
		c.tracing = opts
	}
}

// WithIDGenerator sets the container identity source.
func WithIDGenerator(g ports.IDGenerator) Option {
	return func(c *Container) {
		c.id = g.New()
	}
}

// WithRandom sets the source for generated cookie secrets.
func WithRandom(r ports.Random) Option {
	return func(c *Container) {
		c.random = r
	}
}

// New creates a container.
func New(settings Settings, opts ...Option) *Container {
	c := &Container{
		settings: settings.withDefaults(),
		filters:  make(map[string]any),
		logger:   zerolog.Nop(),
		random:   random.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = idgen.UUID{}.New()
	}
	if c.settings.TemplatePath != "" {
		c.templatePaths = []string{c.settings.TemplatePath}
	}
	return c
}

// ID returns the container identity.
func (c *Container) ID() string { return c.id }

// Settings returns the effective settings.
func (c *Container) Settings() Settings { return c.settings }

func (c *Container) String() string {
	return fmt.Sprintf("<Container %s>", c.id)
}

// AddHandler appends a container-native route.
func (c *Container) AddHandler(pattern string, h http.Handler, opts ...RouteOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, newRoute(pattern, h, opts))
}

// HandleFunc is AddHandler for a function.
func (c *Container) HandleFunc(pattern string, fn http.HandlerFunc, opts ...RouteOption) {
	c.AddHandler(pattern, fn, opts...)
}

// AddFilter registers a template function and returns it unchanged. An
// existing filter of the same name is replaced.
func (c *Container) AddFilter(name string, fn any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters[name] = fn
	return fn
}

// SetIdentityLoader installs the container's identity loader and returns
// it unchanged. It fails if a loader is already active.
func (c *Container) SetIdentityLoader(fn web.IdentityLoader) (web.IdentityLoader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	if c.loader != nil {
		return fn, &DuplicateIdentityLoaderError{Existing: c.loaderOwner, Incoming: c.String()}
	}
	c.loader = fn
	c.loaderOwner = c.String()
	return fn, nil
}

// Register merges m into the container under prefix. An empty prefix
// means "/<module name>"; "/" mounts the routes unchanged.
//
// Registering an already registered module logs a warning and does
// nothing. A second identity loader fails with
// *DuplicateIdentityLoaderError before anything is merged.
func (c *Container) Register(m *Module, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		c.logger.Warn().
			Str("module", m.name).
			Str("container_id", m.containerID).
			Msg(m.String() + " has been registered before")
		return nil
	}

	if m.loader != nil && c.loader != nil {
		return &DuplicateIdentityLoaderError{Existing: c.loaderOwner, Incoming: m.String()}
	}

	if prefix == "" {
		prefix = route.DefaultPrefix(m.name)
	}

	c.templatePaths = append(c.templatePaths, m.templatePath)
	c.routes = append(c.routes, route.Prefix(m.routes, prefix)...)
	for name, fn := range m.filters {
		if _, exists := c.filters[name]; exists {
			c.logger.Debug().Str("filter", name).Str("module", m.name).Msg("template filter overridden")
		}
		c.filters[name] = fn
	}
	if m.loader != nil {
		c.loader = m.loader
		c.loaderOwner = m.String()
	}

	m.registered = true
	m.container = weak.Make(c)
	m.containerID = c.id
	c.modules = append(c.modules, m)

	c.logger.Debug().
		Str("module", m.name).
		Str("prefix", prefix).
		Int("routes", len(m.routes)).
		Msg("module registered")
	return nil
}

// Modules returns the registered modules in registration order.
func (c *Container) Modules() []*Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Module(nil), c.modules...)
}

// Routes returns the merged route table: container routes first, then
// each module's in registration order.
func (c *Container) Routes() []route.Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]route.Route(nil), c.routes...)
}

// TemplatePaths returns the template search path in lookup order.
func (c *Container) TemplatePaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.templatePaths...)
}

// Filters returns a copy of the merged filters.
func (c *Container) Filters() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.filters)
}

// HasIdentityLoader reports whether a loader is active and who set it.
func (c *Container) HasIdentityLoader() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaderOwner, c.loader != nil
}

// TestClient builds a server and serves it on a loopback port. Closing the
// client closes the server.
func (c *Container) TestClient(opts ...testclient.Option) (*testclient.Client, error) {
	srv, err := c.Build()
	if err != nil {
		return nil, err
	}
	tc, err := testclient.New(srv, append([]testclient.Option{testclient.WithLogger(c.logger)}, opts...)...)
	if err != nil {
		srv.Close()
		return nil, err
	}
	return tc, nil
}

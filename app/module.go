// Package app composes independently written modules into one container
// and builds servers from it.
//
//	foo := app.NewModule("foo")
//	foo.HandleFunc("/", index)
//
//	c := app.New(app.Settings{CookieSecret: secret})
//	if err := c.Register(foo, ""); err != nil { // mounted at /foo
//		return err
//	}
//	srv, err := c.Build()
package app

import (
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"weak"

	"github.com/artpar/waterspout/domain/route"
	"github.com/artpar/waterspout/testclient"
	"github.com/artpar/waterspout/web"
)

// RouteOption configures a route when it is added.
type RouteOption func(*route.Route)

// WithName names a route for reverse routing.
func WithName(name string) RouteOption {
	return func(r *route.Route) {
		r.Name = name
	}
}

// WithArgs attaches arguments the handler reads with web.RouteArgs.
func WithArgs(args map[string]any) RouteOption {
	return func(r *route.Route) {
		r.Args = maps.Clone(args)
	}
}

func newRoute(pattern string, h http.Handler, opts []RouteOption) route.Route {
	r := route.New(pattern, h)
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Module is a named bundle of routes, a template directory, template
// filters and optionally an identity loader. A module can be registered
// into one container, once.
type Module struct {
	mu sync.Mutex

	name         string
	rootPath     string
	templatePath string

	routes  []route.Route
	filters map[string]any
	loader  web.IdentityLoader

	registered  bool
	container   weak.Pointer[Container]
	containerID string
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithRootPath overrides the module root. The template path follows it
// unless set explicitly.
func WithRootPath(path string) ModuleOption {
	return func(m *Module) {
		m.rootPath = path
	}
}

// WithTemplatePath overrides the module's template directory.
func WithTemplatePath(path string) ModuleOption {
	return func(m *Module) {
		m.templatePath = path
	}
}

// NewModule creates a module. Its root path is the directory of the
// calling source file, and its templates live in <root>/templates.
func NewModule(name string, opts ...ModuleOption) *Module {
	m := &Module{
		name:     name,
		rootPath: callerDir(2),
		filters:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.templatePath == "" {
		m.templatePath = filepath.Join(m.rootPath, "templates")
	}
	return m
}

// callerDir returns the directory of the source file skip frames up, or
// the working directory when it cannot be determined.
func callerDir(skip int) string {
	if _, file, _, ok := runtime.Caller(skip); ok && filepath.IsAbs(file) {
		return filepath.Dir(file)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// RootPath returns the module root directory.
func (m *Module) RootPath() string { return m.rootPath }

// TemplatePath returns the module's template directory.
func (m *Module) TemplatePath() string { return m.templatePath }

// AddHandler appends a route. Routes added after registration are not
// seen by the container.
func (m *Module) AddHandler(pattern string, h http.Handler, opts ...RouteOption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, newRoute(pattern, h, opts))
}

// HandleFunc is AddHandler for a function.
func (m *Module) HandleFunc(pattern string, fn http.HandlerFunc, opts ...RouteOption) {
	m.AddHandler(pattern, fn, opts...)
}

// Routes returns the module's route table.
func (m *Module) Routes() []route.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]route.Route(nil), m.routes...)
}

// AddFilter registers a template function and returns it unchanged.
func (m *Module) AddFilter(name string, fn any) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[name] = fn
	return fn
}

// Filters returns a copy of the module's filters.
func (m *Module) Filters() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.filters)
}

// SetIdentityLoader sets the module's identity loader and returns it
// unchanged. Conflicts are detected when the module is registered.
func (m *Module) SetIdentityLoader(fn web.IdentityLoader) web.IdentityLoader {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loader = fn
	return fn
}

// Registered reports whether the module has been registered.
func (m *Module) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered
}

// Container returns the container the module is registered with, or nil
// when unregistered or when the container has been garbage collected.
func (m *Module) Container() *Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.container.Value()
}

// ContainerID returns the ID of the owning container, or "".
func (m *Module) ContainerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containerID
}

// TestClient builds the owning container and serves it for tests.
func (m *Module) TestClient(opts ...testclient.Option) (*testclient.Client, error) {
	if !m.Registered() {
		return nil, fmt.Errorf("%s: %w", m, ErrNotRegistered)
	}
	c := m.Container()
	if c == nil {
		return nil, fmt.Errorf("%s: %w", m, ErrContainerGone)
	}
	return c.TestClient(opts...)
}

func (m *Module) String() string {
	return fmt.Sprintf("<Module %s>", m.name)
}

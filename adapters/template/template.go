// Package template provides the Renderer implementation over html/template.
//
// Templates are looked up across an ordered list of search paths; the first
// path containing the requested name wins. Every other template file visible
// through the search paths is parsed into the same set, so pages can pull in
// partials with {{template "partials/nav.html" .}}.
package template

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/artpar/waterspout/adapters/metrics"
	"github.com/artpar/waterspout/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// BoundFuncs are the request-scoped helpers every template may call. They
// are replaced per render; outside a request they return an error.
var BoundFuncs = []string{
	"request",
	"current_user",
	"session",
	"get_flashed_messages",
	"reverse_url",
	"static_url",
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidFilterName reports whether name can be used as a template function.
func ValidFilterName(name string) bool {
	return identRe.MatchString(name)
}

// NotFoundError is returned when no search path holds the template.
type NotFoundError struct {
	Name        string
	SearchPaths []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %q not found in %s", e.Name, strings.Join(e.SearchPaths, ", "))
}

// Options configures an Environment.
type Options struct {
	// AutoReload drops parsed templates when files change on disk.
	AutoReload bool
	Logger     zerolog.Logger
	Metrics    *metrics.Collector
}

// Environment renders templates from a fixed search path with a fixed set
// of filters. It is safe for concurrent use.
type Environment struct {
	paths   []string
	funcs   htmltemplate.FuncMap
	logger  zerolog.Logger
	metrics *metrics.Collector

	mu    sync.RWMutex
	cache map[string]*htmltemplate.Template

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	stopped sync.Once
}

// New creates an environment. filters become template functions; each
// value must be a function. Names are validated by the caller.
func New(paths []string, filters map[string]any, opts Options) (*Environment, error) {
	funcs := make(htmltemplate.FuncMap, len(filters)+len(BoundFuncs))
	for _, name := range BoundFuncs {
		funcs[name] = unbound(name)
	}
	for name, fn := range filters {
		funcs[name] = fn
	}

	e := &Environment{
		paths:   append([]string(nil), paths...),
		funcs:   funcs,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		cache:   make(map[string]*htmltemplate.Template),
		stopCh:  make(chan struct{}),
	}

	if opts.AutoReload {
		if err := e.watch(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SearchPaths returns the search path in lookup order.
func (e *Environment) SearchPaths() []string {
	return append([]string(nil), e.paths...)
}

// Render executes the named template with vars. bound overrides the
// request-scoped helpers for this render only. Output is buffered so a
// failed render writes nothing.
func (e *Environment) Render(w io.Writer, name string, vars map[string]any, bound map[string]any) (err error) {
	defer func() { e.metrics.TemplateRendered(name, err) }()

	t, err := e.lookup(name)
	if err != nil {
		return err
	}

	clone, err := t.Clone()
	if err != nil {
		return fmt.Errorf("clone template %q: %w", name, err)
	}
	if len(bound) > 0 {
		clone.Funcs(htmltemplate.FuncMap(bound))
	}

	var buf bytes.Buffer
	if err := clone.Execute(&buf, vars); err != nil {
		return fmt.Errorf("render %q: %w", name, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// Invalidate drops all parsed templates.
func (e *Environment) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cache)
}

// Close stops watching the search paths.
func (e *Environment) Close() error {
	var err error
	e.stopped.Do(func() {
		close(e.stopCh)
		if e.watcher != nil {
			err = e.watcher.Close()
		}
	})
	return err
}

func (e *Environment) lookup(name string) (*htmltemplate.Template, error) {
	e.mu.RLock()
	t, ok := e.cache[name]
	e.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := e.parse(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[name] = t
	e.mu.Unlock()
	return t, nil
}

func (e *Environment) parse(name string) (*htmltemplate.Template, error) {
	main, ok := e.find(name)
	if !ok {
		return nil, &NotFoundError{Name: name, SearchPaths: e.SearchPaths()}
	}

	t := htmltemplate.New(name).Funcs(e.funcs)
	for rel, path := range e.visible() {
		if rel == name {
			continue
		}
		if _, err := parseFile(t.New(rel), path); err != nil {
			return nil, err
		}
	}

	// Parsed last so its blocks take precedence over same-named ones in
	// partials.
	if _, err := parseFile(t, main); err != nil {
		return nil, err
	}

	e.logger.Debug().Str("template", name).Str("file", main).Msg("template parsed")
	return t, nil
}

// find returns the file for name from the first search path that has it.
func (e *Environment) find(name string) (string, bool) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", false
	}
	for _, dir := range e.paths {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// visible maps every template name reachable through the search paths to
// the file that wins for it.
func (e *Environment) visible() map[string]string {
	out := make(map[string]string)
	for _, dir := range e.paths {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if _, taken := out[rel]; !taken {
				out[rel] = path
			}
			return nil
		})
	}
	return out
}

func parseFile(t *htmltemplate.Template, path string) (*htmltemplate.Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	t, err = t.Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	return t, nil
}

func unbound(name string) func(...any) (any, error) {
	return func(...any) (any, error) {
		return nil, fmt.Errorf("%s: not available outside a request", name)
	}
}

func (e *Environment) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range e.paths {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			return watcher.Add(path)
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	e.watcher = watcher

	go e.watchLoop()

	e.logger.Debug().Strs("paths", e.paths).Msg("watching templates for changes")
	return nil
}

func (e *Environment) watchLoop() {
	for {
		select {
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = e.watcher.Add(event.Name)
				}
			}
			e.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("template changed")
			e.Invalidate()

		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error().Err(err).Msg("template watcher error")

		case <-e.stopCh:
			return
		}
	}
}

// Ensure interface compliance.
var _ ports.Renderer = (*Environment)(nil)

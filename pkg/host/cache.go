package host

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/internal/metrics"
	"dsplug.szuro.net/pkg/plugin"
)

// LoaderHandler is a backend able to open plugin libraries of one format.
type LoaderHandler interface {
	// Name identifies the backend in logs and configuration.
	Name() string
	// Open loads the library at the resolved path. A backend that does not
	// recognise the file returns an error, ideally wrapping ErrNotHandled.
	Open(path string) (state any, plugins []*plugin.Caps, err error)
	// Close releases what Open returned.
	Close(state any) error
}

// LoaderError is returned by Open when no loader accepted a library. It
// matches ErrNoCompatibleLoader and every per-loader reason.
type LoaderError struct {
	Path    string
	Reasons []error
}

func (e *LoaderError) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("%s: %v: no loaders registered", e.Path, ErrNoCompatibleLoader)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, ErrNoCompatibleLoader, errors.Join(e.Reasons...))
}

func (e *LoaderError) Unwrap() []error {
	return append([]error{ErrNoCompatibleLoader}, e.Reasons...)
}

// NotHandled reports whether every loader declined the file as foreign.
func (e *LoaderError) NotHandled() bool {
	if len(e.Reasons) == 0 {
		return false
	}
	for _, r := range e.Reasons {
		if !errors.Is(r, ErrNotHandled) {
			return false
		}
	}
	return true
}

// Cache keeps at most one open Library per canonical path and reference
// counts it. Loaders are tried in registration order.
type Cache struct {
	mu        sync.Mutex
	loaders   []LoaderHandler
	libraries map[string]*Library
}

func NewCache(loaders ...LoaderHandler) *Cache {
	c := &Cache{libraries: make(map[string]*Library)}
	for _, h := range loaders {
		if err := c.RegisterLoader(h); err != nil {
			logger.Warn("Skipping loader", slog.Any("error", err))
		}
	}
	return c
}

// RegisterLoader appends h to the loader list.
func (c *Cache) RegisterLoader(h LoaderHandler) error {
	if h == nil {
		return plugin.Report("RegisterLoader", plugin.ErrInvalidHandle)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.loaders {
		if l.Name() == h.Name() {
			return plugin.Report("RegisterLoader", fmt.Errorf("loader %q: %w", h.Name(), plugin.ErrDuplicateName))
		}
	}
	c.loaders = append(c.loaders, h)
	logger.Debug("Registered loader", slog.String("loader", h.Name()), slog.Int("position", len(c.loaders)))
	return nil
}

// Loaders returns the registered loader names in resolution order.
func (c *Cache) Loaders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.loaders))
	for _, l := range c.loaders {
		names = append(names, l.Name())
	}
	return names
}

// Open returns the library at path, loading it on first use. Every successful
// Open must be paired with a Close.
func (c *Cache) Open(path string) (*Library, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		metrics.LibraryOpens.WithLabelValues(metrics.OpenFailed).Inc()
		return nil, plugin.Report("Open", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if lib, ok := c.libraries[resolved]; ok {
		lib.refs++
		metrics.LibraryOpens.WithLabelValues(metrics.OpenHit).Inc()
		logger.Debug("Library cache hit", slog.String("path", resolved), slog.Int("refs", lib.refs))
		return lib, nil
	}

	var errs []error
	for _, h := range c.loaders {
		state, plugins, err := h.Open(resolved)
		if err != nil {
			logger.Debug("Loader declined library", slog.String("loader", h.Name()), slog.String("path", resolved), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
			continue
		}

		if len(plugins) == 0 {
			if cerr := h.Close(state); cerr != nil {
				logger.Warn("Failed to close empty library", slog.String("path", resolved), slog.Any("error", cerr))
			}
			metrics.LibraryOpens.WithLabelValues(metrics.OpenEmpty).Inc()
			return nil, plugin.Report("Open", fmt.Errorf("%s via %s: %w", resolved, h.Name(), ErrEmptyLibrary))
		}

		lib := &Library{
			path:    resolved,
			loader:  h,
			state:   state,
			plugins: plugins,
			refs:    1,
			cache:   c,
		}
		c.libraries[resolved] = lib
		metrics.LibrariesOpen.Inc()
		metrics.LibraryOpens.WithLabelValues(metrics.OpenLoaded).Inc()
		logger.Info("Loaded plugin library",
			slog.String("path", resolved),
			slog.String("loader", h.Name()),
			slog.Int("plugins", len(plugins)))
		return lib, nil
	}

	metrics.LibraryOpens.WithLabelValues(metrics.OpenFailed).Inc()
	return nil, plugin.Report("Open", &LoaderError{Path: resolved, Reasons: errs})
}

// Close drops one reference to lib. The last reference unloads it.
func (c *Cache) Close(lib *Library) error {
	if lib == nil {
		return plugin.Report("Close", fmt.Errorf("nil library: %w", plugin.ErrInvalidHandle))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.libraries[lib.path]; !ok || cur != lib {
		return plugin.Report("Close", fmt.Errorf("library %s is not open: %w", lib.path, plugin.ErrInvalidHandle))
	}
	lib.refs--
	if lib.refs > 0 {
		return nil
	}
	return c.unload(lib)
}

// unload must be called with c.mu held.
func (c *Cache) unload(lib *Library) error {
	delete(c.libraries, lib.path)
	metrics.LibrariesOpen.Dec()

	if n := lib.live.Load(); n > 0 {
		logger.Warn("Unloading library with live instances",
			slog.String("path", lib.path),
			slog.Int64("instances", n))
	}
	if err := lib.loader.Close(lib.state); err != nil {
		return fmt.Errorf("failed to close library %s: %w", lib.path, err)
	}
	logger.Info("Unloaded plugin library", slog.String("path", lib.path))
	return nil
}

// Lookup returns the open library for path without taking a reference.
func (c *Cache) Lookup(path string) (*Library, bool) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lib, ok := c.libraries[resolved]
	return lib, ok
}

// Libraries returns the open libraries sorted by path.
func (c *Cache) Libraries() []*Library {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(c.libraries))
	for p := range c.libraries {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	libs := make([]*Library, 0, len(paths))
	for _, p := range paths {
		libs = append(libs, c.libraries[p])
	}
	return libs
}

// OpenDir opens every regular file in dir. Files no loader accepts are
// skipped; other failures are collected into the returned error.
func (c *Cache) OpenDir(dir string) ([]*Library, error) {
	logger.Info("Loading plugin libraries from directory", slog.String("dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin files in %s: %w", dir, err)
	}

	var libs []*Library
	var loadErrors []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		lib, err := c.Open(path)
		if err != nil {
			var le *LoaderError
			if errors.As(err, &le) && le.NotHandled() {
				logger.Debug("Skipping file no loader handles", slog.String("path", path))
				continue
			}
			logger.Error("Failed to load plugin library", slog.String("path", path), slog.Any("error", err))
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		libs = append(libs, lib)
	}

	logger.Info("Loaded plugin libraries from directory", slog.String("dir", dir), slog.Int("count", len(libs)))
	if len(loadErrors) > 0 {
		return libs, fmt.Errorf("failed to load some plugin libraries: %s", strings.Join(loadErrors, "; "))
	}
	return libs, nil
}

// CloseAll unloads every library regardless of its reference count.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, lib := range c.libraries {
		lib.refs = 0
		if err := c.unload(lib); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

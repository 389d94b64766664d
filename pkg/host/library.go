package host

import (
	"fmt"
	"sync/atomic"

	"dsplug.szuro.net/pkg/plugin"
)

// Library is a plugin library held by a Cache. It owns the capability
// descriptors of its plugins.
type Library struct {
	path    string
	loader  LoaderHandler
	state   any
	plugins []*plugin.Caps

	// refs is guarded by cache.mu.
	refs  int
	cache *Cache
	live  atomic.Int64
}

func (l *Library) Path() string {
	return l.path
}

// LoaderName names the backend that opened the library.
func (l *Library) LoaderName() string {
	return l.loader.Name()
}

func (l *Library) RefCount() int {
	l.cache.mu.Lock()
	defer l.cache.mu.Unlock()
	return l.refs
}

func (l *Library) PluginCount() int {
	return len(l.plugins)
}

func (l *Library) Plugins() []*plugin.Caps {
	return l.plugins
}

func (l *Library) Caps(i int) (*plugin.Caps, error) {
	if i < 0 || i >= len(l.plugins) {
		return nil, plugin.Report("Caps", fmt.Errorf("plugin %d of %s (have %d): %w", i, l.path, len(l.plugins), plugin.ErrInvalidIndex))
	}
	return l.plugins[i], nil
}

// PluginByID finds a plugin by its unique ID.
func (l *Library) PluginByID(id string) (*plugin.Caps, error) {
	for _, c := range l.plugins {
		if c.UniqueID() == id {
			return c, nil
		}
	}
	return nil, plugin.Report("PluginByID", fmt.Errorf("no plugin %q in %s: %w", id, l.path, plugin.ErrInvalidIndex))
}

// NewInstance instantiates plugin i and counts it against the library.
func (l *Library) NewInstance(i int, sampleRate float64, wantUI bool) (*Instance, error) {
	caps, err := l.Caps(i)
	if err != nil {
		return nil, err
	}
	inst, err := NewInstance(caps, sampleRate, wantUI)
	if err != nil {
		return nil, err
	}
	inst.lib = l
	l.live.Add(1)
	return inst, nil
}

// LiveInstances counts instances created through NewInstance and not yet
// destroyed.
func (l *Library) LiveInstances() int {
	return int(l.live.Load())
}

// Package loader provides in-process loader backends for the host library cache.
package loader

import (
	"fmt"
	"log/slog"
	"path/filepath"
	goplugin "plugin"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

// CreationSymbol is the symbol a native plugin library must export, either as
// a function or a variable of type func(*plugin.LibraryCreation).
const CreationSymbol = "CreationCallback"

// Native loads Go plugins built with -buildmode=plugin.
type Native struct{}

func NewNative() *Native {
	return &Native{}
}

func (n *Native) Name() string {
	return "native"
}

func (n *Native) Open(path string) (any, []*plugin.Caps, error) {
	if filepath.Ext(path) != ".so" {
		return nil, nil, fmt.Errorf("%s is not a shared object: %w", path, host.ErrNotHandled)
	}

	logger.Info("Loading native plugin library", slog.String("path", path))

	p, err := goplugin.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open plugin library %s: %w", path, err)
	}

	sym, err := p.Lookup(CreationSymbol)
	if err != nil {
		return nil, nil, fmt.Errorf("plugin library %s does not export %s: %w", path, CreationSymbol, err)
	}

	var create func(*plugin.LibraryCreation)
	switch fn := sym.(type) {
	case func(*plugin.LibraryCreation):
		create = fn
	case *func(*plugin.LibraryCreation):
		create = *fn
	default:
		return nil, nil, fmt.Errorf("plugin library %s %s has wrong signature %T", path, CreationSymbol, sym)
	}

	plugins, err := plugin.RunCreation(create)
	if err != nil {
		return nil, nil, fmt.Errorf("plugin library %s: %w", path, err)
	}
	return p, plugins, nil
}

// Close is a no-op: the Go runtime cannot unload plugins, they stay mapped
// until the process exits.
func (n *Native) Close(state any) error {
	if p, ok := state.(*goplugin.Plugin); ok && p != nil {
		logger.Debug("Native plugin library stays mapped until exit")
	}
	return nil
}

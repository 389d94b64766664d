package loader

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

// Static serves libraries compiled into the host binary under virtual paths.
type Static struct {
	name  string
	mutex sync.RWMutex
	libs  map[string]func(*plugin.LibraryCreation)
}

func NewStatic(name string) *Static {
	if name == "" {
		name = "static"
	}
	return &Static{
		name: name,
		libs: make(map[string]func(*plugin.LibraryCreation)),
	}
}

// Register makes create available at path. Relative paths are resolved the
// same way the cache resolves them.
func (s *Static) Register(path string, create func(*plugin.LibraryCreation)) error {
	if create == nil {
		return plugin.Report("Register", fmt.Errorf("library %s: %w", path, plugin.ErrMissingCallback))
	}
	resolved, err := host.ResolvePath(path)
	if err != nil {
		return plugin.Report("Register", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.libs[resolved]; exists {
		return plugin.Report("Register", fmt.Errorf("library %s: %w", resolved, plugin.ErrDuplicateName))
	}
	s.libs[resolved] = create
	return nil
}

// Paths lists the registered paths in order.
func (s *Static) Paths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	paths := make([]string, 0, len(s.libs))
	for p := range s.libs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (s *Static) Name() string {
	return s.name
}

func (s *Static) Open(path string) (any, []*plugin.Caps, error) {
	s.mutex.RLock()
	create, ok := s.libs[path]
	s.mutex.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%s is not registered: %w", path, host.ErrNotHandled)
	}

	plugins, err := plugin.RunCreation(create)
	if err != nil {
		return nil, nil, fmt.Errorf("static library %s: %w", path, err)
	}
	return path, plugins, nil
}

func (s *Static) Close(state any) error {
	return nil
}

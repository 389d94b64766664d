package host

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dsplug.szuro.net/pkg/plugin"
)

func TestResolvePath(t *testing.T) {
	prev := getwd
	getwd = func() (string, error) { return "/opt/host", nil }
	defer func() { getwd = prev }()

	long := make([]byte, MaxPathLength)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"Empty", "", "", ErrPathResolution},
		{"Absolute Unchanged", "/usr/lib/dsplug/../dsplug/gain.so", "/usr/lib/dsplug/../dsplug/gain.so", nil},
		{"Relative", "plugins/gain.so", "/opt/host/plugins/gain.so", nil},
		{"Relative Dot", "./gain.so", "/opt/host/gain.so", nil},
		{"Too Long", string(long), "", ErrPathResolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := ResolvePath(tt.input)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, resolved)
		})
	}
}

func TestResolvePathWorkingDirFailure(t *testing.T) {
	prev := getwd
	getwd = func() (string, error) { return "", errors.New("gone") }
	defer func() { getwd = prev }()

	_, err := ResolvePath("gain.so")
	require.ErrorIs(t, err, ErrPathResolution)
}

func TestCacheRefCounting(t *testing.T) {
	fl := newFakeLoader("fake")
	fl.libs["/plugins/gain.so"] = gainLibrary(gainOptions{})
	cache := NewCache(fl)

	a, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	b, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 2, a.RefCount())
	require.Len(t, fl.opened, 1)

	require.NoError(t, cache.Close(a))
	require.Empty(t, fl.closed)
	_, ok := cache.Lookup("/plugins/gain.so")
	require.True(t, ok)

	require.NoError(t, cache.Close(b))
	require.Equal(t, []string{"/plugins/gain.so"}, fl.closed)
	_, ok = cache.Lookup("/plugins/gain.so")
	require.False(t, ok)

	require.ErrorIs(t, cache.Close(a), plugin.ErrInvalidHandle)
	require.ErrorIs(t, cache.Close(nil), plugin.ErrInvalidHandle)
}

func TestCacheReopenAfterUnload(t *testing.T) {
	fl := newFakeLoader("fake")
	fl.libs["/plugins/gain.so"] = gainLibrary(gainOptions{})
	cache := NewCache(fl)

	first, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	require.NoError(t, cache.Close(first))

	second, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Len(t, fl.opened, 2)
	require.ErrorIs(t, cache.Close(first), plugin.ErrInvalidHandle)
	require.NoError(t, cache.Close(second))
}

func TestCacheRelativePathSharesEntry(t *testing.T) {
	prev := getwd
	getwd = func() (string, error) { return "/plugins", nil }
	defer func() { getwd = prev }()

	fl := newFakeLoader("fake")
	fl.libs["/plugins/gain.so"] = gainLibrary(gainOptions{})
	cache := NewCache(fl)

	a, err := cache.Open("gain.so")
	require.NoError(t, err)
	b, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, "/plugins/gain.so", a.Path())
}

func TestCacheLoaderOrder(t *testing.T) {
	first, second := newFakeLoader("first"), newFakeLoader("second")
	first.libs["/plugins/both.so"] = gainLibrary(gainOptions{id: "from.first"})
	second.libs["/plugins/both.so"] = gainLibrary(gainOptions{id: "from.second"})
	second.libs["/plugins/only.so"] = gainLibrary(gainOptions{id: "from.second"})

	cache := NewCache(first, second)
	require.Equal(t, []string{"first", "second"}, cache.Loaders())

	lib, err := cache.Open("/plugins/both.so")
	require.NoError(t, err)
	require.Equal(t, "first", lib.LoaderName())
	caps, err := lib.Caps(0)
	require.NoError(t, err)
	require.Equal(t, "from.first", caps.UniqueID())

	lib, err = cache.Open("/plugins/only.so")
	require.NoError(t, err)
	require.Equal(t, "second", lib.LoaderName())
}

func TestCacheDuplicateLoader(t *testing.T) {
	cache := NewCache(newFakeLoader("fake"))
	require.ErrorIs(t, cache.RegisterLoader(newFakeLoader("fake")), plugin.ErrDuplicateName)
	require.ErrorIs(t, cache.RegisterLoader(nil), plugin.ErrInvalidHandle)
	require.Equal(t, []string{"fake"}, cache.Loaders())
}

func TestCacheNoCompatibleLoader(t *testing.T) {
	cache := NewCache(newFakeLoader("a"), newFakeLoader("b"))
	_, err := cache.Open("/plugins/unknown.so")
	require.ErrorIs(t, err, ErrNoCompatibleLoader)
	require.ErrorIs(t, err, ErrNotHandled)

	var le *LoaderError
	require.ErrorAs(t, err, &le)
	require.Len(t, le.Reasons, 2)
	require.True(t, le.NotHandled())
	require.Empty(t, cache.Libraries())

	_, err = NewCache().Open("/plugins/unknown.so")
	require.ErrorIs(t, err, ErrNoCompatibleLoader)
}

func TestCacheEmptyLibrary(t *testing.T) {
	fl := newFakeLoader("fake")
	fl.libs["/plugins/empty.so"] = func(*plugin.LibraryCreation) {}
	cache := NewCache(fl)

	lib, err := cache.Open("/plugins/empty.so")
	require.ErrorIs(t, err, ErrEmptyLibrary)
	require.Nil(t, lib)
	require.Equal(t, []string{"/plugins/empty.so"}, fl.closed)
	_, ok := cache.Lookup("/plugins/empty.so")
	require.False(t, ok)
}

func TestCacheLibrariesSorted(t *testing.T) {
	fl := newFakeLoader("fake")
	for _, p := range []string{"/p/c.so", "/p/a.so", "/p/b.so"} {
		fl.libs[p] = gainLibrary(gainOptions{})
	}
	cache := NewCache(fl)
	for _, p := range []string{"/p/c.so", "/p/a.so", "/p/b.so"} {
		_, err := cache.Open(p)
		require.NoError(t, err)
	}

	var paths []string
	for _, lib := range cache.Libraries() {
		paths = append(paths, lib.Path())
	}
	require.Equal(t, []string{"/p/a.so", "/p/b.so", "/p/c.so"}, paths)

	require.NoError(t, cache.CloseAll())
	require.Empty(t, cache.Libraries())
	require.Len(t, fl.closed, 3)
}

func TestCacheOpenDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"gain.so", "empty.so", "README"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	fl := newFakeLoader("fake")
	fl.libs[filepath.Join(dir, "gain.so")] = gainLibrary(gainOptions{})
	fl.libs[filepath.Join(dir, "empty.so")] = func(*plugin.LibraryCreation) {}
	cache := NewCache(fl)

	libs, err := cache.OpenDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty.so")
	require.NotContains(t, err.Error(), "README")
	require.Len(t, libs, 1)
	require.Equal(t, filepath.Join(dir, "gain.so"), libs[0].Path())

	_, err = cache.OpenDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestLibraryInstances(t *testing.T) {
	fl := newFakeLoader("fake")
	fl.libs["/plugins/gain.so"] = gainLibrary(gainOptions{})
	cache := NewCache(fl)

	lib, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	require.Equal(t, 1, lib.PluginCount())

	_, err = lib.Caps(1)
	require.ErrorIs(t, err, plugin.ErrInvalidIndex)
	_, err = lib.NewInstance(3, 44100, false)
	require.ErrorIs(t, err, plugin.ErrInvalidIndex)

	caps, err := lib.PluginByID("test.gain")
	require.NoError(t, err)
	require.Equal(t, "Gain", caps.Caption())

	inst, err := lib.NewInstance(0, 44100, false)
	require.NoError(t, err)
	require.Equal(t, 1, lib.LiveInstances())
	require.NoError(t, inst.Destroy())
	require.Equal(t, 0, lib.LiveInstances())
	require.NoError(t, cache.Close(lib))
}

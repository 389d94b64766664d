package remote

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	goplugin "github.com/hashicorp/go-plugin"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

// Loader opens remote libraries: standalone executables serving a library
// through Serve.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Name() string {
	return "remote"
}

type loadedLibrary struct {
	path   string
	client *goplugin.Client
}

func (l *Loader) Open(path string) (any, []*plugin.Caps, error) {
	if filepath.Ext(path) == ".so" {
		return nil, nil, fmt.Errorf("%s is a shared object: %w", path, host.ErrNotHandled)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, host.ErrNotHandled)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return nil, nil, fmt.Errorf("%s is not executable: %w", path, host.ErrNotHandled)
	}

	logger.Info("Loading remote plugin library", slog.String("path", path))

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          pluginSet(nil),
		Cmd:              exec.Command(path),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger:           logger.NewHCLogAdapter(filepath.Base(path)),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to connect to remote library %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense library from %s: %w", path, err)
	}

	lib, ok := raw.(*LibraryRPCClient)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("remote library %s returned %T", path, raw)
	}

	desc, err := lib.Describe()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("remote library %s: %w", path, err)
	}

	plugins, err := Rebuild(desc, lib)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("remote library %s: %w", path, err)
	}

	logger.Info("Successfully loaded remote plugin library",
		slog.String("path", path),
		slog.Int("plugins", len(plugins)))
	return &loadedLibrary{path: path, client: client}, plugins, nil
}

// Close kills the plugin process.
func (l *Loader) Close(state any) error {
	lib, ok := state.(*loadedLibrary)
	if !ok || lib == nil {
		return fmt.Errorf("remote loader cannot close %T: %w", state, plugin.ErrInvalidHandle)
	}
	logger.Info("Killing remote plugin library", slog.String("path", lib.path))
	lib.client.Kill()
	return nil
}

package commands

import (
	"context"

	"dsplug.szuro.net/internal/config"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/loader"
)

type contextKey int

const runtimeContextKey contextKey = iota

// GlobalFlags mirrors the persistent flags of the root command.
type GlobalFlags struct {
	Debug      bool
	JSONOutput bool
}

// Runtime is what every subcommand needs: the parsed configuration and the
// library cache built from it.
type Runtime struct {
	Config config.HostConf
	Cache  *host.Cache
	// Static is nil unless the static loader is enabled.
	Static *loader.Static
	Flags  GlobalFlags
}

func NewContext(parent context.Context, rt *Runtime) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, runtimeContextKey, rt)
}

// FromContext extracts the Runtime from ctx. It panics when PersistentPreRunE
// did not run.
func FromContext(ctx context.Context) *Runtime {
	rt, ok := ctx.Value(runtimeContextKey).(*Runtime)
	if !ok || rt == nil {
		panic("dsplughost: Runtime not found in context")
	}
	return rt
}

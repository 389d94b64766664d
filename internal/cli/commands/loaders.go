package commands

import (
	"log/slog"

	"dsplug.szuro.net/internal/builtin"
	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/loader"
	"dsplug.szuro.net/pkg/remote"
)

// NewCache builds a library cache with the named loaders in order. The static
// loader, when named, serves the built-in library.
func NewCache(names []string) (*host.Cache, *loader.Static) {
	var (
		handlers []host.LoaderHandler
		static   *loader.Static
	)
	for _, name := range names {
		switch name {
		case "native":
			handlers = append(handlers, loader.NewNative())
		case "remote":
			handlers = append(handlers, remote.NewLoader())
		case "static":
			static = loader.NewStatic("static")
			if err := static.Register(builtin.Path, builtin.CreationCallback); err != nil {
				logger.Error("Failed to register built-in library", slog.Any("error", err))
			}
			handlers = append(handlers, static)
		default:
			logger.Warn("Unknown loader", slog.String("name", name))
		}
	}
	return host.NewCache(handlers...), static
}

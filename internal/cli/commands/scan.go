package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/internal/pprint"
	"dsplug.szuro.net/internal/scancache"
	"dsplug.szuro.net/pkg/host"
)

func NewScanCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "scan [dir...]",
		Short: "List the plugins found in plugin directories",
		Long: `Opens every file of the given directories (or plugin_dirs from the
configuration) with the configured loaders and lists the plugins they declare.
Results are stored in the scan cache; --cached prints the cache instead.`,
		Example: `  dsplughost scan /usr/lib/dsplug
  dsplughost scan --cached`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			sc, err := scancache.Open(rt.Config.ScanCache.Dir, time.Duration(rt.Config.ScanCache.TTL)*time.Hour)
			if err != nil {
				return fmt.Errorf("scan cache: %w", err)
			}
			defer sc.Close()

			var entries []scancache.Entry
			if cached {
				entries, err = sc.List()
				if err != nil {
					return fmt.Errorf("scan cache: %w", err)
				}
				warnStale(entries)
			} else {
				dirs := args
				if len(dirs) == 0 {
					dirs = rt.Config.PluginDirs
				}
				entries, err = scan(rt, sc, dirs)
				if err != nil {
					pprint.Warn("%s", err)
				}
			}

			if rt.Flags.JSONOutput {
				return json.NewEncoder(pprint.Output).Encode(entries)
			}
			printEntries(entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "Print the scan cache without loading libraries")
	return cmd
}

// scan opens every library in dirs plus the built-in ones and records them.
// Libraries stay open in the runtime cache until the command finishes.
func scan(rt *Runtime, sc *scancache.Cache, dirs []string) ([]scancache.Entry, error) {
	var (
		libs     []*host.Library
		firstErr error
	)
	for _, dir := range dirs {
		opened, err := rt.Cache.OpenDir(dir)
		libs = append(libs, opened...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Static != nil {
		for _, path := range rt.Static.Paths() {
			lib, err := rt.Cache.Open(path)
			if err != nil {
				logger.Error("Failed to open built-in library", slog.String("path", path), slog.Any("error", err))
				continue
			}
			libs = append(libs, lib)
		}
	}

	entries := make([]scancache.Entry, 0, len(libs))
	for _, lib := range libs {
		var modTime time.Time
		if info, err := os.Stat(lib.Path()); err == nil {
			modTime = info.ModTime()
		}

		e := scancache.Summarize(lib, modTime)
		if err := sc.Put(e); err != nil {
			logger.Warn("Failed to store scan entry", slog.String("path", e.Path), slog.Any("error", err))
		}
		entries = append(entries, e)
	}
	return entries, firstErr
}

// warnStale flags cached entries whose file changed after it was scanned.
func warnStale(entries []scancache.Entry) {
	for _, e := range entries {
		info, err := os.Stat(e.Path)
		if err != nil {
			continue
		}
		if !e.Fresh(info.ModTime()) {
			pprint.Warn("%s changed since it was scanned at %s", e.Path, e.ScannedAt.Format(time.RFC3339))
		}
	}
}

func printEntries(entries []scancache.Entry) {
	tbl := pprint.NewTable("LIBRARY", "LOADER", "UNIQUE ID", "CAPTION", "VERSION", "USAGE", "PORTS A/E/C")
	for _, e := range entries {
		for _, p := range e.Plugins {
			tbl.AddRow(e.Path, e.Loader, p.UniqueID, p.Caption, p.Version, p.Usage,
				strconv.Itoa(p.Audio)+"/"+strconv.Itoa(p.Events)+"/"+strconv.Itoa(p.Controls))
		}
	}
	if tbl.Len() == 0 {
		pprint.Warn("No plugins found")
		return
	}
	tbl.Render()
	pprint.Success("%d libraries, %d plugins", len(entries), tbl.Len())
}

// dsplughost loads DSPlug plugin libraries and exercises them from the
// command line.
package main

import (
	"dsplug.szuro.net/internal/cli"
	"dsplug.szuro.net/internal/config"
)

// Build-time variables injected via:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=abc1234 -X main.buildDate=2026-01-01"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	config.Version = version
	config.Commit = commit
	config.BuildDate = buildDate

	cli.Execute()
}

package config

// Build metadata, set by main from its linker-injected variables.
var (
	Version, Commit, BuildDate string
)

package server

import "github.com/driftwood-mud/driftwood/pkg/command"

// versionString reports the server name and version.
func versionString() string {
	return "Driftwood " + command.Version
}

// VersionString is the exported form used by cmd/server at startup.
func VersionString() string { return versionString() }

// File: control/verbosity.go
// Verbosity stepping bound to the zerolog global level.
// License: Apache-2.0

package control

import "github.com/rs/zerolog"

// RaiseVerbosity lowers the zerolog global level by one step (more output)
// and returns the new level. Once at trace it stays there.
func RaiseVerbosity() zerolog.Level {
	lvl := zerolog.GlobalLevel()
	if lvl > zerolog.TraceLevel {
		lvl--
		zerolog.SetGlobalLevel(lvl)
	}
	return lvl
}

// ApplyLogLevel parses a level name and installs it globally. Unknown names
// are ignored and the current level is returned.
func ApplyLogLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.GlobalLevel()
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.GlobalLevel()
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

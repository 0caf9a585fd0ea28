// Package cliconfig provides the shared XDG-backed configuration file and
// logger bootstrap for the dnstap-sender and dnstap-receiver CLIs.
package cliconfig

import (
	"os"

	"github.com/rs/zerolog"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/tzrikka/xdg"
)

const configFileName = "config.toml"

// ConfigFile returns the path to dirName's configuration file under the
// user's XDG config home, creating an empty file if none exists yet.
func ConfigFile(dirName string) altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, dirName, configFileName)
	if err != nil {
		panic("cliconfig: " + err.Error())
	}
	return altsrc.StringSourcer(path)
}

// Logger returns a console logger when pretty is set, and a JSON logger to
// stderr otherwise.
func Logger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

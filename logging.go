package dnswire

import "github.com/rs/zerolog"

// Logger is the structured logger used by Reader and Writer to report
// session lifecycle events (handshake, stop/finish, terminal errors). The
// core frame codec and session state machines never log anything
// themselves; logging is confined to the façades and to cmd/*.
type Logger = zerolog.Logger

// NopLogger returns a Logger that discards everything, used when no
// WithLogger option is given.
func NopLogger() Logger { return zerolog.Nop() }

func init() {
	defaultOptions.Logger = NopLogger()
}

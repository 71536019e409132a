package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/viper"
)

// SetupLogging configures the global logger from the log.* keys of v and
// returns the file it opened, if any, so the caller can close it.
func SetupLogging(v *viper.Viper) (io.Closer, error) {
	level := strings.ToLower(v.GetString("log.level"))

	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	var out io.Writer
	var closer io.Closer

	switch output := v.GetString("log.output"); output {
	case "stderr", "":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		fh, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = fh, fh
	}

	if v.GetBool("log.pretty") {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp()
	if v.GetBool("log.report_caller") {
		logger = logger.Caller()
	}
	log.Logger = logger.Logger()

	//nolint:reassign
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	return closer, nil
}

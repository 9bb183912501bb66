package log

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// Options contains configuration settings for the logger.
type Options struct {
	// Level is the minimum log level to output. Can be 'debug', 'info', 'warn', 'error'.
	Level string

	// Format specifies the log output format. Can be 'json' or 'console'.
	Format string

	// EnableColor enables colorized levels for the console format.
	EnableColor bool

	// DisableCaller stops annotating logs with the calling file and line.
	DisableCaller bool

	// OutputPaths is a list of paths to write logs to. Use "stdout" or "stderr" for console output.
	OutputPaths []string
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		OutputPaths: []string{"stderr"},
	}
}

// Validate checks level and format.
func (o *Options) Validate() error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", o.Level)
	}
	switch o.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be 'console' or 'json'", o.Format)
	}
	return nil
}

// AddFlags binds command-line flags to the Options fields.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "The minimum log level to output (e.g., 'debug', 'info', 'warn', 'error').")
	fs.StringVar(&o.Format, "log.format", o.Format, "The log output format ('json' or 'console').")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Enable colorized output for the console format.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable the caller field in logs (file and line number).")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "A list of log output paths (e.g., 'stderr', '/var/log/parkboard.log').")
}

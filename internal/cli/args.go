package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ErrHelp is returned by ParseArgs after help or version text was printed.
var ErrHelp = errors.New("help requested")

// Options are the parsed command-line settings.
type Options struct {
	ConfigPath string
	// LogLevel overrides the config file level when set.
	LogLevel   string
	NoDownload bool
	// Wait keeps the process alive until every launched downloader exits.
	Wait bool
}

// ParseArgs parses argv (without the program name).
//
// It accepts both `-c <path>` and `--config <path>`. If no explicit config
// flag is provided, it falls back to `config.yaml`.
func ParseArgs(argv []string, version string, out io.Writer) (Options, error) {
	opts := Options{}
	ran := false
	cmd := &cobra.Command{
		Use:           "leccap",
		Short:         "Collect lecture recording links and start their downloads",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			ran = true
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the YAML config file")
	f.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVar(&opts.NoDownload, "no-download", false, "write link files without starting downloads")
	f.BoolVar(&opts.Wait, "wait", false, "wait for started downloads to finish before exiting")

	if argv == nil {
		argv = []string{}
	}
	cmd.SetArgs(argv)
	cmd.SetOut(out)
	cmd.SetErr(out)
	if err := cmd.Execute(); err != nil {
		return opts, err
	}
	if !ran {
		return opts, ErrHelp
	}
	return opts, nil
}

// Exit terminates the process with the given exit code.
func Exit(code int) {
	os.Exit(code)
}

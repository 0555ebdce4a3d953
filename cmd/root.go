package cmd

import (
	"github.com/bnema/kmlx/internal/logging"
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	verbose    bool
	trace      bool
	logLevel   string
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	app := wireApp()

	rootCmd := &cobra.Command{
		Use:           "kmlx",
		Short:         "kmlx: convert saved Google Maps places into KML",
		Long:          "kmlx reads saved-place CSV exports, resolves every place to coordinates (opening the place page in a headless browser when the export has none) and writes KML documents for Google Earth and other map tools.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.Setup(logging.Config{
				Level:  logging.LevelFromFlags(opts.logLevel, opts.verbose, opts.trace),
				Pretty: true,
				Output: cmd.ErrOrStderr(),
			})
			return loadConfig(app.config, opts.configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output")
	flags.BoolVar(&opts.trace, "trace", false, "Log every poll and session hand-off")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn or error (overrides -v and --trace)")
	flags.StringVar(&opts.configFile, "config", "", "Config file (default ~/.config/kmlx/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newParseCmd(app),
		newSplitCmd(app),
		newErrorsCmd(),
	)

	return rootCmd
}

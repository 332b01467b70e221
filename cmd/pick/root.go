package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var opts globalOptions
	ctx := newCommandContext(&opts)

	rootCmd := &cobra.Command{
		Use:           "pick",
		Short:         "Run picker batches and manage the local content provider",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx.configureLogging(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "TOML configuration file (overrides PICKER_CONFIG)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides DATA_DIR)")
	flags.BoolVar(&opts.json, "json", false, "Always print JSON, even on a terminal")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newMediaCommand(ctx))
	rootCmd.AddCommand(newGrantCommand(ctx))

	return rootCmd
}

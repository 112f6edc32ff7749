package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(opts ...contextOption) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, opts...)

	rootCmd := &cobra.Command{
		Use:           "photobooth",
		Short:         "ブラウザで使うフォトブース",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "設定ファイルのパス (YAMLまたはTOML)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newShootCommand(ctx))
	rootCmd.AddCommand(newDevicesCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

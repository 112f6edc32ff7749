package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "読み込まれた設定を表示する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "yaml", "yml":
				data, err = yaml.Marshal(cfg)
			case "toml":
				data, err = toml.Marshal(cfg)
			default:
				return fmt.Errorf("サポートされていない形式: %s", format)
			}
			if err != nil {
				return fmt.Errorf("設定の出力に失敗: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "出力形式 (yaml または toml)")

	return cmd
}

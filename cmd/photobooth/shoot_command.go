package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"photobooth/internal/booth"
)

func newShootCommand(ctx *commandContext) *cobra.Command {
	var (
		output    string
		grayscale bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "shoot",
		Short: "画面なしで4枚撮影してストリップをPNGで保存する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			opts := booth.OptionsFromConfig(cfg)
			opts.Clock = ctx.clock
			if cmd.Flags().Changed("grayscale") {
				opts.Grayscale = grayscale
			}
			if !quiet {
				opts.OnEvent = progressPrinter(stdout)
			}

			controller := booth.NewController(ctx.newCameras(cfg.Camera), opts)
			return shoot(cmd.Context(), controller, output, stdout)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", booth.DownloadFilename, "保存先のファイル")
	cmd.Flags().BoolVar(&grayscale, "grayscale", false, "モノクロで撮影する")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "進行状況を表示しない")

	return cmd
}

// shoot はセッションを1回分実行してストリップを保存する
func shoot(ctx context.Context, controller *booth.Controller, output string, stdout io.Writer) error {
	defer func() {
		_ = controller.Close(context.Background())
	}()

	if err := controller.Enter(ctx); err != nil {
		return err
	}
	if err := controller.TakePhotos(ctx); err != nil {
		return err
	}

	composite, err := controller.Composite()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("保存先ファイルの作成に失敗: %w", err)
	}
	if err := composite.EncodePNG(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("保存先ファイルの書き込みに失敗: %w", err)
	}

	fmt.Fprintf(stdout, "ストリップを保存しました: %s (%dx%d)\n", output, composite.Width, composite.Height)
	return nil
}

// progressPrinter はセッションのイベントを端末に表示する
func progressPrinter(w io.Writer) booth.EventFunc {
	return func(ev booth.Event) {
		switch ev.Kind {
		case booth.EventCountdown:
			if ev.Count > 0 {
				fmt.Fprintf(w, "  %d...\n", ev.Count)
			}
		case booth.EventCaptured:
			fmt.Fprintf(w, "撮影しました (%d/%d)\n", ev.Count, booth.DefaultShots)
		case booth.EventProcessing:
			if ev.Count > 0 {
				fmt.Fprintf(w, "印刷中... %d\n", ev.Count)
			}
		case booth.EventNotice:
			fmt.Fprintf(w, "お知らせ: %s\n", ev.Message)
		}
	}
}

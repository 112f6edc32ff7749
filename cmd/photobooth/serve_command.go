package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"photobooth/internal/config"
	"photobooth/internal/server"
	"photobooth/internal/trigger"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		host     string
		port     int
		source   string
		device   string
		useGPIO  bool
		mockGPIO bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "フォトブースのWebサーバーを起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// コマンドラインオプションで設定を上書き
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("source") {
				cfg.Camera.Source = source
			}
			if flags.Changed("device") {
				cfg.Camera.Device = device
			}
			if flags.Changed("trigger") {
				cfg.Trigger.Enabled = useGPIO
			}
			if flags.Changed("mock-gpio") {
				cfg.Trigger.Mock = mockGPIO
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("設定の検証に失敗: %w", err)
			}

			return runServe(cmd.Context(), ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "サーバーのポート (デフォルト: 8080)")
	cmd.Flags().StringVar(&source, "source", "", "映像ソース (usb_camera または test_pattern)")
	cmd.Flags().StringVar(&device, "device", "", "カメラのデバイスパス (空の場合は自動検出)")
	cmd.Flags().BoolVar(&useGPIO, "trigger", false, "GPIOのボタンとフラッシュライトを使う")
	cmd.Flags().BoolVar(&mockGPIO, "mock-gpio", false, "GPIOをモックで代用する")

	return cmd
}

func runServe(parent context.Context, cc *commandContext, cfg *config.Config) error {
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	opts := []server.Option{server.WithClock(cc.clock)}

	var driver trigger.Driver
	if cfg.Trigger.Enabled {
		d, err := trigger.NewDriver(cfg.Trigger.Mock)
		if err != nil {
			return err
		}
		driver = d
		defer func() {
			if err := driver.Close(); err != nil {
				log.Printf("GPIOのクローズに失敗: %v", err)
			}
		}()

		flash, err := trigger.NewFlashLight(driver, cfg.Trigger.FlashPin)
		if err != nil {
			return err
		}
		defer flash.Close()
		opts = append(opts, server.WithEventListener(flash.HandleEvent))
	}

	srv := server.New(cfg, cc.newCameras(cfg.Camera), opts...)

	if driver != nil {
		button := trigger.SessionButton(driver, cfg.Trigger.ButtonPin, cfg.Trigger.Debounce, srv.Controller())
		buttonDone := make(chan struct{})
		go func() {
			defer close(buttonDone)
			if err := button.Run(runCtx); err != nil {
				log.Printf("ボタンの監視に失敗: %v", err)
			}
		}()
		defer func() {
			cancel()
			<-buttonDone
		}()
	}

	return srv.Start(runCtx)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"photobooth/internal/camera"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "接続されているカメラを一覧表示する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			devices, err := ctx.newCameras(cfg.Camera).ListDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("カメラの検出に失敗: %w", err)
			}

			stdout := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(stdout, "カメラが見つかりません")
				return nil
			}

			headers := []string{"デバイス", "名前", "ドライバー", "フォーマット", "最大解像度"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
			rows := make([][]string, 0, len(devices))
			for _, device := range devices {
				rows = append(rows, []string{
					device.Device,
					device.Name,
					device.Driver,
					strings.Join(device.Formats, ", "),
					maxResolution(device.Resolutions),
				})
			}

			fmt.Fprintln(stdout, renderTable(headers, rows, aligns, shouldColorize(stdout)))
			return nil
		},
	}
}

func maxResolution(resolutions []camera.Resolution) string {
	var best camera.Resolution
	for _, r := range resolutions {
		if r.Width*r.Height > best.Width*best.Height {
			best = r
		}
	}
	if best.Width == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", best.Width, best.Height)
}

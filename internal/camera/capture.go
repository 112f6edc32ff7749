package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

var (
	jpegSOI = []byte{0xFF, 0xD8} // Start Of Image
	jpegEOI = []byte{0xFF, 0xD9} // End Of Image
)

// V4L2Capturer はシェルコマンドを使ってV4L2デバイスから画像を取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	fps        int
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, width, height, fps int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      width,
		height:     height,
		fps:        fps,
	}
}

// IsDeviceAvailable はV4L2デバイスが利用可能かチェックする
func (c *V4L2Capturer) IsDeviceAvailable(ctx context.Context) bool {
	// v4l2-ctlコマンドでデバイス情報を取得して確認
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", c.devicePath, "--info")
	return cmd.Run() == nil
}

// TestCapture はデバイステスト用の簡単なキャプチャ機能
// 権限が無い場合やデバイスが使用中の場合はここで失敗する
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(testCtx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-i", c.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("フレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return fmt.Errorf("フレームキャプチャの出力が空です")
	}

	return nil
}

// StartStream は連続キャプチャを行う。ffmpegが終了するかctxがキャンセルされるまでブロックする
func (c *V4L2Capturer) StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error) {
	runMJPEGPipe(ctx, []string{
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-r", strconv.Itoa(c.fps),
		"-i", c.devicePath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	}, frameChan, errorChan)
}

// runMJPEGPipe はffmpegを起動し、標準出力のMJPEGストリームをフレーム単位に分割して送信する
func runMJPEGPipe(ctx context.Context, args []string, frameChan chan<- []byte, errorChan chan<- error) {
	sendErr := func(err error) {
		select {
		case errorChan <- err:
		case <-ctx.Done():
		}
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sendErr(fmt.Errorf("stdoutパイプの作成に失敗: %w", err))
		return
	}

	if err := cmd.Start(); err != nil {
		sendErr(fmt.Errorf("ffmpegの起動に失敗: %w", err))
		return
	}
	defer func() {
		_ = cmd.Wait() // エラーは無視（コンテキストキャンセル時に発生するため）
	}()

	buffer := make([]byte, 1024*1024) // 1MBバッファ
	var pending []byte

	for {
		n, err := stdout.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)

			var frames [][]byte
			frames, pending = extractJPEGFrames(pending)
			for _, frame := range frames {
				select {
				case frameChan <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				sendErr(fmt.Errorf("フレーム読み取りエラー: %w", err))
			}
			return
		}
	}
}

// extractJPEGFrames はバッファから完全なJPEGフレームを取り出し、残りのデータを返す
// 開始マーカーより前のゴミデータは捨てる
func extractJPEGFrames(data []byte) ([][]byte, []byte) {
	var frames [][]byte

	for {
		startIdx := bytes.Index(data, jpegSOI)
		if startIdx == -1 {
			// マーカーの途中で切れている可能性があるため最後の1バイトは残す
			if len(data) > 0 && data[len(data)-1] == jpegSOI[0] {
				return frames, data[len(data)-1:]
			}
			return frames, nil
		}

		endIdx := bytes.Index(data[startIdx+len(jpegSOI):], jpegEOI)
		if endIdx == -1 {
			// 完全なフレームがまだない
			return frames, data[startIdx:]
		}

		end := startIdx + len(jpegSOI) + endIdx + len(jpegEOI)
		frame := make([]byte, end-startIdx)
		copy(frame, data[startIdx:end])
		frames = append(frames, frame)

		data = data[end:]
	}
}

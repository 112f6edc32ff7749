package camera

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// TestPatternCapturer はffmpegのlavfiテストパターンを映像として扱う
// カメラの無い環境での動作確認に使う
type TestPatternCapturer struct {
	width  int
	height int
	fps    int
}

// NewTestPatternCapturer は新しいTestPatternCapturerを作成する
func NewTestPatternCapturer(width, height, fps int) *TestPatternCapturer {
	return &TestPatternCapturer{
		width:  width,
		height: height,
		fps:    fps,
	}
}

func (c *TestPatternCapturer) input() string {
	return fmt.Sprintf("testsrc2=size=%dx%d:rate=%d", c.width, c.height, c.fps)
}

// IsDeviceAvailable はffmpegが利用可能かチェックする
func (c *TestPatternCapturer) IsDeviceAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	return cmd.Run() == nil
}

// TestCapture はテストパターンを1フレーム生成できるか確認する
func (c *TestPatternCapturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(testCtx,
		"ffmpeg",
		"-f", "lavfi",
		"-i", c.input(),
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
		return fmt.Errorf("テストパターンの生成に失敗: %w (stderr: %s)", err, stderr.String())
	}

	return nil
}

// StartStream はテストパターンのストリームを開始する
func (c *TestPatternCapturer) StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error) {
	runMJPEGPipe(ctx, []string{
		"-re",
		"-f", "lavfi",
		"-i", c.input(),
		"-r", strconv.Itoa(c.fps),
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	}, frameChan, errorChan)
}

// NewTestPatternSource はテストパターンの VideoSource を作成する
func NewTestPatternSource(info VideoSourceInfo, settings VideoSettings) *PipelineSource {
	return newPipelineSource(info, settings,
		NewTestPatternCapturer(settings.Width, settings.Height, settings.FrameRate))
}

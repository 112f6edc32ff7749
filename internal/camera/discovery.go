package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	videoDevicePattern = regexp.MustCompile(`^/dev/video\d+$`)
	deviceNumberRegexp = regexp.MustCompile(`video(\d+)`)
)

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
type LinuxDiscovery struct {
	// v4l2-ctl 実行のタイムアウト
	commandTimeout time.Duration
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{commandTimeout: 5 * time.Second}
}

// ScanDevices はカラー映像を出せる /dev/video* をデバイス番号順に返す
// 同じ物理カメラの複数ノードは最も小さい番号だけを残す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	seenNames := make(map[string]bool)

	for _, match := range matches {
		// コンテキストのキャンセルをチェック
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		if !d.IsDeviceAvailable(ctx, match) || !d.hasColorFormat(ctx, match) {
			continue
		}

		if name := d.cardName(ctx, match); name != "" {
			if seenNames[name] {
				continue
			}
			seenNames[name] = true
		}

		devices = append(devices, match)
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが読み取り可能なV4L2デバイスかチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !videoDevicePattern.MatchString(device) {
		return false
	}

	// デバイスファイルの読み取り権限チェック
	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()

	return true
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s: %w", device, ErrDeviceUnavailable)
	}

	name := d.cardName(ctx, device)
	if name == "" {
		name = fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
	}

	return &DeviceInfo{
		Device:  device,
		Name:    name,
		Driver:  "uvcvideo",
		Formats: d.formats(ctx, device),
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1920, Height: 1080},
		},
	}, nil
}

// v4l2ctl は v4l2-ctl を実行して出力を返す
func (d *LinuxDiscovery) v4l2ctl(ctx context.Context, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, d.commandTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, "v4l2-ctl", args...).Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// cardName は "Card type" の行からカメラ名を抽出する
func (d *LinuxDiscovery) cardName(ctx context.Context, device string) string {
	output, err := d.v4l2ctl(ctx, "--device", device, "--info")
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}

	return ""
}

// formats はデバイスが対応するピクセルフォーマットを返す
func (d *LinuxDiscovery) formats(ctx context.Context, device string) []string {
	output, err := d.v4l2ctl(ctx, "--device", device, "--list-formats-ext")
	if err != nil {
		return nil
	}
	return parsePixelFormats(output)
}

// hasColorFormat はグレースケール専用（IRカメラなど）でないことを確認する
func (d *LinuxDiscovery) hasColorFormat(ctx context.Context, device string) bool {
	for _, format := range d.formats(ctx, device) {
		if format == "YUYV" || format == "MJPG" {
			return true
		}
	}
	return false
}

// parsePixelFormats は v4l2-ctl --list-formats-ext の出力からフォーマット名を抽出する
// 例: "[0]: 'MJPG' (Motion-JPEG, compressed)" -> "MJPG"
func parsePixelFormats(output string) []string {
	var formats []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		start := strings.Index(line, "'")
		if start == -1 {
			continue
		}
		end := strings.Index(line[start+1:], "'")
		if end == -1 {
			continue
		}
		formats = append(formats, line[start+1:start+1+end])
	}
	return formats
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := deviceNumberRegexp.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}

	return num
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices     []string
	deviceInfos map[string]*DeviceInfo
	scanErr     error
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []string) *MockDiscovery {
	m := &MockDiscovery{deviceInfos: make(map[string]*DeviceInfo)}
	for _, device := range devices {
		m.AddDevice(device)
	}
	return m
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	result := make([]string, len(m.devices))
	copy(result, m.devices)
	return result, nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	_, exists := m.deviceInfos[device]
	return exists
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, device string) (*DeviceInfo, error) {
	info, exists := m.deviceInfos[device]
	if !exists {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}

	// コピーを返す
	result := *info
	return &result, nil
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(device string) {
	if _, exists := m.deviceInfos[device]; exists {
		return
	}

	m.devices = append(m.devices, device)
	m.deviceInfos[device] = &DeviceInfo{
		Device: device,
		Name:   fmt.Sprintf("テストカメラ %d", len(m.devices)),
		Driver: "mock",
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
		},
		Formats: []string{"MJPG"},
	}
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockDiscovery) RemoveDevice(device string) {
	for i, d := range m.devices {
		if d == device {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			break
		}
	}
	delete(m.deviceInfos, device)
}

// SetScanError はテスト用にスキャン失敗を設定する
func (m *MockDiscovery) SetScanError(err error) {
	m.scanErr = err
}

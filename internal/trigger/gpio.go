package trigger

import (
	"fmt"
	"log"
	"sync"
)

// Level はGPIOピンの論理レベル
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode はGPIOピンの入出力方向
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver はGPIOを操作するインターフェース
// Raspberry Pi の実装と開発用のモックを差し替えられる
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver はモードに応じたGPIOドライバーを作成する
func NewDriver(mock bool) (Driver, error) {
	if mock {
		log.Println("モックGPIOドライバーを使用します")
		return NewMockDriver(), nil
	}
	return NewRPiDriver()
}

// MockDriver はピンの状態をメモリ上で保持するドライバー
// 入力ピンは押されていない状態（プルアップでHigh）から始まる
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	writes map[int][]Level
	closed bool
}

// NewMockDriver は新しいMockDriverを作成する
func NewMockDriver() *MockDriver {
	return &MockDriver{
		modes:  make(map[int]PinMode),
		levels: make(map[int]Level),
		writes: make(map[int][]Level),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("GPIOは既にクローズされています")
	}
	m.modes[pin] = mode
	if mode == Input {
		if _, ok := m.levels[pin]; !ok {
			m.levels[pin] = High
		}
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.modes[pin] != Output {
		return fmt.Errorf("ピン %d は出力に設定されていません", pin)
	}
	m.levels[pin] = level
	m.writes[pin] = append(m.writes[pin], level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.modes[pin]; !ok {
		return Low, fmt.Errorf("ピン %d は設定されていません", pin)
	}
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// SetLevel は入力ピンのレベルを変更する（ボタン操作を模擬する）
func (m *MockDriver) SetLevel(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// Writes はピンに書き込まれたレベルの履歴を返す
func (m *MockDriver) Writes(pin int) []Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Level(nil), m.writes[pin]...)
}

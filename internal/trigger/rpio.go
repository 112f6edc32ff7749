package trigger

import (
	"fmt"
	"log"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// pinTable は設定済みのピンを保持する
// ボタンの監視とフラッシュのタイマーが別々のゴルーチンから参照する
type pinTable[T any] struct {
	mu   sync.RWMutex
	pins map[int]T
}

func newPinTable[T any]() *pinTable[T] {
	return &pinTable[T]{pins: make(map[int]T)}
}

func (t *pinTable[T]) set(pin int, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pins[pin] = v
}

func (t *pinTable[T]) get(pin int) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.pins[pin]
	return v, ok
}

// drain は全てのピンを取り出して空にする
func (t *pinTable[T]) drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	values := make([]T, 0, len(t.pins))
	for pin, v := range t.pins {
		values = append(values, v)
		delete(t.pins, pin)
	}
	return values
}

// RPiDriver は go-rpio を使った Raspberry Pi 用のドライバー
type RPiDriver struct {
	pins *pinTable[rpio.Pin]
}

// NewRPiDriver はGPIOメモリをマップしてドライバーを作成する
// /dev/gpiomem へのアクセス権限が必要
func NewRPiDriver() (*RPiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("GPIOのオープンに失敗（Raspberry Pi上で実行していますか？）: %w", err)
	}

	log.Println("GPIOドライバーを初期化しました")
	return &RPiDriver{
		pins: newPinTable[rpio.Pin](),
	}, nil
}

// SetupPin はピンの方向を設定する。入力はプルアップにする（ボタンはGNDへ接続）
func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	p := rpio.Pin(pin)

	switch mode {
	case Input:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("不明なピンモード: %d", mode)
	}

	r.pins.set(pin, p)
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	p, ok := r.pins.get(pin)
	if !ok {
		return fmt.Errorf("ピン %d は設定されていません", pin)
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	p, ok := r.pins.get(pin)
	if !ok {
		return Low, fmt.Errorf("ピン %d は設定されていません", pin)
	}
	return p.Read() == rpio.High, nil
}

// Close は全てのピンを入力に戻してGPIOを閉じる
func (r *RPiDriver) Close() error {
	for _, p := range r.pins.drain() {
		p.Input()
	}
	return rpio.Close()
}

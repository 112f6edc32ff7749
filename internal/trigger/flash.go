package trigger

import (
	"fmt"
	"log"
	"sync"
	"time"

	"photobooth/internal/booth"
)

// FlashLight はフラッシュイベントに合わせて点灯するライト
type FlashLight struct {
	driver Driver
	pin    int

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64 // 点灯ごとに増やす。古いタイマーの消灯を無視するため
}

// NewFlashLight は出力ピンを設定して消灯状態のFlashLightを作成する
func NewFlashLight(driver Driver, pin int) (*FlashLight, error) {
	if err := driver.SetupPin(pin, Output); err != nil {
		return nil, fmt.Errorf("フラッシュピン %d の設定に失敗: %w", pin, err)
	}
	if err := driver.WritePin(pin, Low); err != nil {
		return nil, fmt.Errorf("フラッシュピン %d の初期化に失敗: %w", pin, err)
	}
	return &FlashLight{driver: driver, pin: pin}, nil
}

// HandleEvent はフラッシュイベントを受け取ると、その表示時間だけライトを点灯する
// セッションのロック中に呼ばれるためブロックしない
func (f *FlashLight) HandleEvent(ev booth.Event) {
	if ev.Kind != booth.EventFlash {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	if err := f.driver.WritePin(f.pin, High); err != nil {
		log.Printf("フラッシュの点灯に失敗: %v", err)
		return
	}

	gen := f.gen
	duration := time.Duration(ev.Duration) * time.Millisecond
	f.timer = time.AfterFunc(duration, func() { f.off(gen) })
}

// off は点灯した世代が最新の場合だけ消灯する
func (f *FlashLight) off(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		return
	}
	f.turnOffLocked()
}

func (f *FlashLight) turnOffLocked() {
	if err := f.driver.WritePin(f.pin, Low); err != nil {
		log.Printf("フラッシュの消灯に失敗: %v", err)
	}
	f.timer = nil
}

// Close はライトを消灯する
func (f *FlashLight) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	f.turnOffLocked()
}

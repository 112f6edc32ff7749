package trigger

import (
	"context"
	"fmt"
	"log"
	"time"
)

const defaultPollInterval = 10 * time.Millisecond

// PressFunc はボタンが押されたときに呼ばれる
type PressFunc func(ctx context.Context) error

// Button はGPIO入力につながった押しボタン
// プルアップ接続のため、押されている間はLowになる
type Button struct {
	driver       Driver
	pin          int
	debounce     time.Duration
	pollInterval time.Duration
	onPress      PressFunc
}

// NewButton は新しいButtonを作成する
func NewButton(driver Driver, pin int, debounce time.Duration, onPress PressFunc) *Button {
	return &Button{
		driver:       driver,
		pin:          pin,
		debounce:     debounce,
		pollInterval: defaultPollInterval,
		onPress:      onPress,
	}
}

// Run はコンテキストがキャンセルされるまでボタンを監視する
// レベルがdebounceの間変化しなかったときだけ状態の変化とみなし、押し下げでonPressを呼ぶ
func (b *Button) Run(ctx context.Context) error {
	if err := b.driver.SetupPin(b.pin, Input); err != nil {
		return fmt.Errorf("ボタンピン %d の設定に失敗: %w", b.pin, err)
	}

	log.Printf("ボタンの監視を開始しました: GPIO%d", b.pin)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	stable, last := High, High
	changedAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Printf("ボタンの監視を終了しました: GPIO%d", b.pin)
			return nil
		case now := <-ticker.C:
			level, err := b.driver.ReadPin(b.pin)
			if err != nil {
				log.Printf("ボタンの読み取りに失敗: %v", err)
				continue
			}

			if level != last {
				last = level
				changedAt = now
				continue
			}
			if level == stable || now.Sub(changedAt) < b.debounce {
				continue
			}

			stable = level
			if stable == Low {
				if err := b.onPress(ctx); err != nil {
					log.Printf("ボタン操作を処理できませんでした: %v", err)
				}
			}
		}
	}
}

package trigger

import (
	"context"
	"fmt"
	"log"
	"time"

	"photobooth/internal/booth"
)

// Session はボタンから操作するセッション
type Session interface {
	Snapshot() booth.Snapshot
	Enter(ctx context.Context) error
	StartPhotos(ctx context.Context) (<-chan error, error)
	Restart(ctx context.Context) error
}

// Press は現在の画面で押されるべきボタンの操作を行う
//
//	入口画面 → はじめる
//	撮影画面 → 撮影する（完了を待たずに戻る）
//	完成画面 → もう一度
//
// 撮影中と印刷中は booth.ErrSessionBusy を返す
func Press(ctx context.Context, session Session) error {
	snapshot := session.Snapshot()

	switch snapshot.Phase {
	case booth.PhaseIdle:
		return session.Enter(ctx)
	case booth.PhaseReady:
		done, err := session.StartPhotos(ctx)
		if err != nil {
			return err
		}
		go func() {
			if err := <-done; err != nil {
				log.Printf("ボタンから開始した撮影に失敗: %v", err)
			}
		}()
		return nil
	case booth.PhaseResult, booth.PhaseFailed:
		return session.Restart(ctx)
	default:
		return fmt.Errorf("%w: %s", booth.ErrSessionBusy, snapshot.Phase)
	}
}

// SessionButton はセッションを操作するボタンを作成する
func SessionButton(driver Driver, pin int, debounce time.Duration, session Session) *Button {
	return NewButton(driver, pin, debounce, func(ctx context.Context) error {
		return Press(ctx, session)
	})
}

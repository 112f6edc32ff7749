package booth

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"
)

// DefaultShots は1セッションで撮影する枚数
const DefaultShots = 4

// SequenceState はシーケンサーの状態
type SequenceState string

const (
	SequenceIdle         SequenceState = "idle"          // 開始前
	SequenceCountingDown SequenceState = "counting_down" // カウントダウン中
	SequenceFlashing     SequenceState = "flashing"      // フラッシュ表示
	SequenceCapturing    SequenceState = "capturing"     // フレーム取得中
	SequencePaused       SequenceState = "paused"        // 次の撮影までの待ち
	SequenceComplete     SequenceState = "complete"      // 全枚数の撮影が完了
)

// Timing は撮影シーケンスの時間設定
type Timing struct {
	CountdownFrom  int           // カウントダウンの開始値
	Tick           time.Duration // カウントダウンの間隔
	AfterCountdown time.Duration // カウントダウン終了からフラッシュまで
	Flash          time.Duration // フラッシュの表示時間
	Pause          time.Duration // 撮影後の待ち時間
	Shots          int           // 撮影枚数
}

// DefaultTiming はデフォルトの時間設定を返す
func DefaultTiming() Timing {
	return Timing{
		CountdownFrom:  3,
		Tick:           time.Second,
		AfterCountdown: 300 * time.Millisecond,
		Flash:          300 * time.Millisecond,
		Pause:          500 * time.Millisecond,
		Shots:          DefaultShots,
	}
}

// FrameSource は撮影時点のフレームを返す
// camera.Stream はこのインターフェースを満たす
type FrameSource interface {
	CurrentFrame(ctx context.Context) (image.Image, error)
}

// RunConfig は1回のシーケンス実行に必要なもの
type RunConfig struct {
	Source  FrameSource
	Store   *PhotoStore
	Filter  func() TransformOptions // 撮影の瞬間に評価する
	OnEvent EventFunc
}

// Sequencer はカウントダウン、フラッシュ、撮影、待ちを指定枚数分順番に進める
type Sequencer struct {
	timing  Timing
	clock   Clock
	quality int

	mu    sync.RWMutex
	state SequenceState
}

// NewSequencer は新しいSequencerを作成する
func NewSequencer(timing Timing, clock Clock, quality int) *Sequencer {
	if clock == nil {
		clock = RealClock()
	}
	return &Sequencer{
		timing:  timing,
		clock:   clock,
		quality: quality,
		state:   SequenceIdle,
	}
}

// State は現在の状態を返す
func (s *Sequencer) State() SequenceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset は状態をIdleに戻す
func (s *Sequencer) Reset() {
	s.setState(SequenceIdle)
}

func (s *Sequencer) setState(state SequenceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Run は撮影シーケンスを最後まで実行する
// 途中で止める手段はなく、ctxのキャンセル（プロセス終了）でのみ中断する
// 失敗した場合は状態をそのままにするので、再実行にはResetが必要
func (s *Sequencer) Run(ctx context.Context, rc RunConfig) error {
	s.mu.Lock()
	if s.state != SequenceIdle {
		s.mu.Unlock()
		return ErrSequenceRunning
	}
	s.state = SequenceCountingDown
	s.mu.Unlock()

	emit := rc.OnEvent
	if emit == nil {
		emit = func(Event) {}
	}

	for shot := 0; shot < s.timing.Shots; shot++ {
		if err := s.countdown(ctx, shot, emit); err != nil {
			return err
		}

		// フラッシュは撮影と重なって表示される
		s.setState(SequenceFlashing)
		emit(Event{Kind: EventFlash, Shot: shot + 1, Duration: s.timing.Flash.Milliseconds()})

		s.setState(SequenceCapturing)
		if err := s.capture(ctx, shot, rc); err != nil {
			return err
		}
		emit(Event{Kind: EventCaptured, Shot: shot + 1, Count: rc.Store.Len()})

		s.setState(SequencePaused)
		if err := s.wait(ctx, s.timing.Pause); err != nil {
			return err
		}
	}

	s.setState(SequenceComplete)
	log.Printf("%d枚の撮影が完了しました", rc.Store.Len())
	return nil
}

// countdown は開始値から0まで1つずつ通知する。0はオーバーレイを消す合図
func (s *Sequencer) countdown(ctx context.Context, shot int, emit EventFunc) error {
	s.setState(SequenceCountingDown)

	for count := s.timing.CountdownFrom; count > 0; count-- {
		emit(Event{Kind: EventCountdown, Shot: shot + 1, Count: count})
		if err := s.wait(ctx, s.timing.Tick); err != nil {
			return err
		}
	}
	emit(Event{Kind: EventCountdown, Shot: shot + 1, Count: 0})

	return s.wait(ctx, s.timing.AfterCountdown)
}

// capture は現在のフレームを1回だけ取得し、変換してストアに追加する
func (s *Sequencer) capture(ctx context.Context, shot int, rc RunConfig) error {
	img, err := rc.Source.CurrentFrame(ctx)
	if err != nil {
		return fmt.Errorf("%d枚目のフレーム取得に失敗: %w", shot+1, err)
	}

	var opts TransformOptions
	if rc.Filter != nil {
		opts = rc.Filter()
	}

	frame, err := NewFrame(shot, Transform(img, opts), s.quality, s.clock.Now())
	if err != nil {
		return err
	}
	rc.Store.Append(frame)

	return nil
}

func (s *Sequencer) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

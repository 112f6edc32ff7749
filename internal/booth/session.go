package booth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/camera"
	"photobooth/internal/config"
)

// Phase はセッションの進行段階
type Phase string

const (
	PhaseIdle       Phase = "idle"       // 入口画面
	PhaseReady      Phase = "ready"      // カメラ準備完了、撮影待ち
	PhaseCapturing  Phase = "capturing"  // 撮影シーケンス実行中
	PhaseProcessing Phase = "processing" // 印刷中の演出
	PhaseResult     Phase = "result"     // ストリップ完成
	PhaseFailed     Phase = "failed"     // 失敗（リスタートが必要）
)

// View は画面に表示するページ
type View string

const (
	ViewLanding  View = "landing"
	ViewCapture  View = "capture"
	ViewPrinting View = "printing"
	ViewResult   View = "result"
)

// View はフェーズに対応する画面を返す。常にちょうど1つ
func (p Phase) View() View {
	switch p {
	case PhaseReady, PhaseCapturing:
		return ViewCapture
	case PhaseProcessing:
		return ViewPrinting
	case PhaseResult, PhaseFailed:
		return ViewResult
	default:
		return ViewLanding
	}
}

// CameraAccess はカメラへのアクセスを要求する
// camera.Manager はこのインターフェースを満たす
type CameraAccess interface {
	RequestAccess(ctx context.Context, constraints camera.Constraints) (camera.Stream, error)
}

// Options はセッションコントローラーの設定
type Options struct {
	Constraints       camera.Constraints
	Timing            Timing
	Layout            Layout
	JPEGQuality       int
	ProcessingSeconds int // 印刷中カウントダウンの秒数
	Grayscale         bool
	Clock             Clock
	OnEvent           EventFunc
}

// DefaultOptions はデフォルト設定を返す
func DefaultOptions() Options {
	return Options{
		Constraints:       camera.Constraints{IdealWidth: 1280, IdealHeight: 720},
		Timing:            DefaultTiming(),
		Layout:            DefaultLayout(),
		JPEGQuality:       90,
		ProcessingSeconds: 5,
		Clock:             RealClock(),
	}
}

// OptionsFromConfig は設定の値を反映したOptionsを返す
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Constraints = camera.Constraints{
		IdealWidth:  cfg.Camera.IdealWidth,
		IdealHeight: cfg.Camera.IdealHeight,
		FPS:         cfg.Camera.FPS,
	}
	opts.JPEGQuality = cfg.Booth.JPEGQuality
	opts.Grayscale = cfg.Booth.Grayscale
	return opts
}

// Snapshot はセッションのある時点の状態
type Snapshot struct {
	SessionID     string        `json:"session_id"`
	Phase         Phase         `json:"phase"`
	View          View          `json:"view"`
	Grayscale     bool          `json:"grayscale"`
	Frames        int           `json:"frames"`
	Shots         int           `json:"shots"`
	Sequence      SequenceState `json:"sequence"`
	CameraActive  bool          `json:"camera_active"`
	HasComposite  bool          `json:"has_composite"`
	LastError     string        `json:"last_error,omitempty"`
	LastUpdatedAt time.Time     `json:"last_updated_at"`
}

// Controller は1台のフォトブースのセッションを管理する
// 入口 → 撮影 → 印刷中 → 完成 の順に画面を切り替える
type Controller struct {
	cameras    CameraAccess
	opts       Options
	store      *PhotoStore
	sequencer  *Sequencer
	compositor *Compositor

	mu        sync.RWMutex
	sessionID string
	phase     Phase
	grayscale bool
	busy      bool // カメラ取得中、撮影中、印刷中
	stream    camera.Stream
	composite *Composite
	lastError string
	updatedAt time.Time
}

// NewController は新しいControllerを作成する
func NewController(cameras CameraAccess, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Timing.Shots <= 0 {
		opts.Timing = DefaultTiming()
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 90
	}
	if opts.Layout.PhotoWidth <= 0 {
		opts.Layout = DefaultLayout()
	}

	return &Controller{
		cameras:    cameras,
		opts:       opts,
		store:      NewPhotoStore(),
		sequencer:  NewSequencer(opts.Timing, opts.Clock, opts.JPEGQuality),
		compositor: NewCompositor(opts.Layout, opts.Timing.Shots),
		sessionID:  uuid.NewString(),
		phase:      PhaseIdle,
		grayscale:  opts.Grayscale,
		updatedAt:  opts.Clock.Now(),
	}
}

// Enter は撮影画面に切り替えてカメラへのアクセスを要求する
// アクセスできない場合は通知を出して入口画面に戻る
func (c *Controller) Enter(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrSessionBusy
	}
	if c.phase == PhaseReady {
		c.mu.Unlock()
		return nil
	}
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s から撮影画面には入れません", ErrInvalidPhase, c.phase)
	}
	c.busy = true
	c.setPhaseLocked(PhaseReady)
	c.mu.Unlock()

	stream, err := c.cameras.RequestAccess(ctx, c.opts.Constraints)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		log.Printf("カメラへのアクセスに失敗: %v", err)
		c.noticeLocked("カメラにアクセスできませんでした。接続と権限を確認してもう一度お試しください")
		c.setPhaseLocked(PhaseIdle)
		return fmt.Errorf("カメラへのアクセスに失敗: %w", err)
	}

	c.stream = stream
	log.Printf("セッション %s: カメラ %s を取得しました", c.sessionID, stream.ID())
	return nil
}

// SetGrayscale はモノクロフィルターを切り替える
// 撮影中でも変更でき、次に撮影するフレームから反映される
func (c *Controller) SetGrayscale(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.grayscale = on
	c.updatedAt = c.opts.Clock.Now()
	c.publishLocked(Event{Kind: EventFilter})
}

// TakePhotos は撮影シーケンスを実行し、印刷中の演出の後にストリップを作成する
// 完了するまでブロックする
func (c *Controller) TakePhotos(ctx context.Context) error {
	stream, sessionID, err := c.beginCapture()
	if err != nil {
		return err
	}
	return c.runCapture(ctx, stream, sessionID)
}

// StartPhotos はTakePhotosと同じ処理をバックグラウンドで開始する
// 開始できない場合はすぐにエラーを返す。結果は返されたチャンネルに1回だけ送られる
func (c *Controller) StartPhotos(ctx context.Context) (<-chan error, error) {
	stream, sessionID, err := c.beginCapture()
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- c.runCapture(ctx, stream, sessionID)
	}()
	return done, nil
}

// beginCapture は撮影を開始できるか確認して撮影中にする
func (c *Controller) beginCapture() (camera.Stream, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy || c.phase == PhaseCapturing || c.phase == PhaseProcessing {
		return nil, "", ErrSessionBusy
	}
	if c.phase != PhaseReady || c.stream == nil {
		return nil, "", fmt.Errorf("%w: カメラが準備できていません（%s）", ErrInvalidPhase, c.phase)
	}

	c.busy = true
	c.store.Clear()
	c.setPhaseLocked(PhaseCapturing)
	return c.stream, c.sessionID, nil
}

func (c *Controller) runCapture(ctx context.Context, stream camera.Stream, sessionID string) error {
	err := c.sequencer.Run(ctx, RunConfig{
		Source: stream,
		Store:  c.store,
		Filter: func() TransformOptions {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return TransformOptions{Mirror: true, Grayscale: c.grayscale}
		},
		OnEvent: func(ev Event) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			ev.SessionID = sessionID
			c.publishLocked(ev)
		},
	})

	// 4枚目の撮影が終わったらすぐにカメラを止める
	c.releaseStream(ctx)

	if err != nil {
		return c.fail(fmt.Errorf("撮影に失敗: %w", err), "撮影に失敗しました。最初からやり直してください")
	}

	c.mu.Lock()
	c.setPhaseLocked(PhaseProcessing)
	c.mu.Unlock()

	if err := c.printCountdown(ctx, sessionID); err != nil {
		return c.fail(err, "処理が中断されました。最初からやり直してください")
	}

	composite, err := c.compositor.Compose(ctx, c.store.Frames())
	if err != nil {
		return c.fail(err, "フィルムストリップを作成できませんでした。最初からやり直してください")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.composite = composite
	c.busy = false
	c.setPhaseLocked(PhaseResult)
	log.Printf("セッション %s: フィルムストリップを作成しました (%dx%d)", sessionID, composite.Width, composite.Height)
	return nil
}

// printCountdown は印刷中の演出としてカウントダウンを通知する
func (c *Controller) printCountdown(ctx context.Context, sessionID string) error {
	for count := c.opts.ProcessingSeconds; count >= 0; count-- {
		c.mu.RLock()
		c.publishLocked(Event{Kind: EventProcessing, SessionID: sessionID, Count: count})
		c.mu.RUnlock()

		if count == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.opts.Clock.After(time.Second):
		}
	}
	return nil
}

// Restart はセッションを破棄して入口画面に戻る
// 撮影中と印刷中は受け付けない
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrSessionBusy
	}
	c.busy = true
	c.mu.Unlock()

	c.releaseStream(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.busy = false
	c.store.Clear()
	c.sequencer.Reset()
	c.composite = nil
	c.lastError = ""
	c.grayscale = c.opts.Grayscale
	previous := c.sessionID
	c.sessionID = uuid.NewString()
	c.setPhaseLocked(PhaseIdle)

	log.Printf("セッション %s を破棄し、新しいセッション %s を開始しました", previous, c.sessionID)
	return nil
}

// Close はカメラを保持していれば解放する（シャットダウン用）
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Release(ctx)
}

// Snapshot は現在の状態を返す
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		SessionID:     c.sessionID,
		Phase:         c.phase,
		View:          c.phase.View(),
		Grayscale:     c.grayscale,
		Frames:        c.store.Len(),
		Shots:         c.opts.Timing.Shots,
		Sequence:      c.sequencer.State(),
		CameraActive:  c.stream != nil,
		HasComposite:  c.composite != nil,
		LastError:     c.lastError,
		LastUpdatedAt: c.updatedAt,
	}
}

// Composite は完成したストリップを返す
func (c *Controller) Composite() (*Composite, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.composite == nil {
		return nil, ErrNoComposite
	}
	return c.composite, nil
}

// Frames は撮影済みのフレームを撮影順に返す
func (c *Controller) Frames() []Frame {
	return c.store.Frames()
}

// PreviewJPEG はライブプレビュー用に最新フレームを返す
func (c *Controller) PreviewJPEG() ([]byte, error) {
	c.mu.RLock()
	stream := c.stream
	c.mu.RUnlock()

	if stream == nil {
		return nil, fmt.Errorf("%w: カメラは起動していません", camera.ErrDeviceUnavailable)
	}
	return stream.LatestJPEG()
}

func (c *Controller) releaseStream(ctx context.Context) {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Release(ctx); err != nil {
		log.Printf("カメラの解放に失敗: %v", err)
	}
}

// fail はセッションを失敗状態にして通知する
func (c *Controller) fail(err error, notice string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		log.Printf("セッション %s が中断されました", c.sessionID)
	} else {
		log.Printf("セッション %s でエラーが発生: %v", c.sessionID, err)
	}

	c.busy = false
	c.lastError = err.Error()
	c.noticeLocked(notice)
	c.setPhaseLocked(PhaseFailed)
	return err
}

func (c *Controller) setPhaseLocked(phase Phase) {
	c.phase = phase
	c.updatedAt = c.opts.Clock.Now()
	c.publishLocked(Event{Kind: EventPhase})
}

func (c *Controller) noticeLocked(message string) {
	c.publishLocked(Event{Kind: EventNotice, Message: message})
}

// publishLocked はイベントに現在の状態を埋めて通知する。c.mu を保持して呼ぶ
func (c *Controller) publishLocked(ev Event) {
	if c.opts.OnEvent == nil {
		return
	}
	if ev.SessionID == "" {
		ev.SessionID = c.sessionID
	}
	ev.Phase = c.phase
	ev.View = c.phase.View()
	ev.Grayscale = c.grayscale
	c.opts.OnEvent(ev)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"photobooth/internal/booth"
	"photobooth/internal/config"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config      *config.Config
	httpServer  *http.Server
	engine      *gin.Engine
	controller  *booth.Controller
	broadcaster *EventBroadcaster
	clock       booth.Clock
	listeners   []booth.EventFunc

	// バックグラウンドの撮影とストリーミングを止めるためのコンテキスト
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	listenerMu sync.Mutex
	addr       string
}

// Option はServerの設定を変更する
type Option func(*Server)

// WithClock は撮影シーケンスで使うClockを差し替える
func WithClock(clock booth.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithEventListener はブラウザへの配信に加えてセッションのイベントを受け取る関数を登録する
func WithEventListener(listener booth.EventFunc) Option {
	return func(s *Server) {
		s.listeners = append(s.listeners, listener)
	}
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, cameras booth.CameraAccess, opts ...Option) *Server {
	s := &Server{
		config:      cfg,
		broadcaster: NewEventBroadcaster(),
		clock:       booth.RealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	boothOpts := booth.OptionsFromConfig(cfg)
	boothOpts.Clock = s.clock
	boothOpts.OnEvent = s.publish
	s.controller = booth.NewController(cameras, boothOpts)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.engine = s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) publish(ev booth.Event) {
	s.broadcaster.Publish(ev)
	for _, listener := range s.listeners {
		listener(ev)
	}
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Controller はセッションコントローラーを返す
func (s *Server) Controller() *booth.Controller {
	return s.controller
}

// Addr は実際にリッスンしているアドレスを返す（起動前は空）
func (s *Server) Addr() string {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	return s.addr
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() *gin.Engine {
	handler := &BoothHandler{
		config:      s.config,
		controller:  s.controller,
		broadcaster: s.broadcaster,
		ctx:         s.ctx,
		wg:          &s.wg,
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	// 画面
	engine.GET("/", handler.Index)
	engine.StaticFS("/assets", GetAssetsFS())

	// ヘルスチェックエンドポイント
	engine.GET("/health", handler.HealthCheck)

	api := engine.Group("/api")
	api.GET("/status", handler.GetStatus)

	session := api.Group("/session")
	session.GET("", handler.GetSession)
	session.POST("/enter", handler.EnterSession)
	session.POST("/capture", handler.CaptureSession)
	session.PUT("/filter", handler.UpdateFilter)
	session.POST("/restart", handler.RestartSession)
	session.GET("/events", handler.SessionEvents)

	api.GET("/camera/stream", handler.CameraStream)
	api.GET("/strip", handler.GetStrip)
	api.GET("/strip.png", handler.DownloadStrip)

	engine.NoRoute(handler.NotFound)

	return engine
}

// Start はサーバーを起動し、コンテキストのキャンセルかシグナルでシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	s.listenerMu.Lock()
	s.addr = listener.Addr().String()
	s.listenerMu.Unlock()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 実行中の撮影シーケンスは中断され、カメラは解放される
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// ストリーミングと撮影シーケンスを先に止める
	s.cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.wg.Wait()

	if err := s.controller.Close(ctx); err != nil {
		log.Printf("カメラの解放に失敗: %v", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

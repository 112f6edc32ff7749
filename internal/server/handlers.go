package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/config"
)

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバーのリッスン情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CameraInfo はカメラの設定情報
type CameraInfo struct {
	Source string `json:"source"`
	Device string `json:"device,omitempty"`
	Width  int    `json:"ideal_width"`
	Height int    `json:"ideal_height"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status      string         `json:"status"`
	Server      ServerInfo     `json:"server"`
	Camera      CameraInfo     `json:"camera"`
	Session     booth.Snapshot `json:"session"`
	Subscribers int            `json:"subscribers"`
	Timestamp   time.Time      `json:"timestamp"`
}

// FilterRequest はフィルター切り替えのリクエスト
type FilterRequest struct {
	Grayscale *bool `json:"grayscale" binding:"required"`
}

// StripResponse は完成したストリップのdata URI
type StripResponse struct {
	DataURI  string `json:"data_uri"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Filename string `json:"filename"`
}

// BoothHandler はフォトブースのAPIを処理する
type BoothHandler struct {
	config      *config.Config
	controller  *booth.Controller
	broadcaster *EventBroadcaster

	// 撮影シーケンスはリクエストではなくサーバーの寿命に紐づける
	ctx context.Context
	wg  *sync.WaitGroup
}

// Index は画面のHTMLを返す
func (h *BoothHandler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *BoothHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *BoothHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Camera: CameraInfo{
			Source: h.config.Camera.Source,
			Device: h.config.Camera.Device,
			Width:  h.config.Camera.IdealWidth,
			Height: h.config.Camera.IdealHeight,
		},
		Session:     h.controller.Snapshot(),
		Subscribers: h.broadcaster.ClientCount(),
		Timestamp:   time.Now(),
	})
}

// GetSession は現在のセッション状態を返す
func (h *BoothHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// EnterSession は撮影画面に入りカメラを起動する
func (h *BoothHandler) EnterSession(c *gin.Context) {
	if err := h.controller.Enter(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// CaptureSession は撮影シーケンスを開始する。完了を待たずに 202 を返す
func (h *BoothHandler) CaptureSession(c *gin.Context) {
	done, err := h.controller.StartPhotos(h.ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := <-done; err != nil {
			log.Printf("撮影セッションが失敗しました: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, h.controller.Snapshot())
}

// UpdateFilter はモノクロフィルターを切り替える
func (h *BoothHandler) UpdateFilter(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_request",
			Message:   "リクエストの形式が正しくありません",
			Details:   stringPtr(err.Error()),
			Timestamp: time.Now(),
		})
		return
	}

	h.controller.SetGrayscale(*req.Grayscale)
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// RestartSession はセッションを破棄して入口画面に戻る
func (h *BoothHandler) RestartSession(c *gin.Context) {
	if err := h.controller.Restart(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// SessionEvents はセッションイベントをServer-Sent Eventsで配信する
func (h *BoothHandler) SessionEvents(c *gin.Context) {
	events, unsub := h.broadcaster.Subscribe()
	defer unsub()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 接続直後に現在の状態を送る
	c.SSEvent("snapshot", h.controller.Snapshot())
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": heartbeat\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		case <-h.ctx.Done():
			return false
		}
	})
}

// CameraStream はライブプレビューをMJPEGで配信する
func (h *BoothHandler) CameraStream(c *gin.Context) {
	frame, err := h.controller.PreviewJPEG()
	if err != nil {
		respondError(c, err)
		return
	}

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := c.Writer
	fps := h.config.Camera.FPS
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		if err := writeMJPEGFrame(writer, frame); err != nil {
			return
		}
		writer.Flush()

		select {
		case <-c.Request.Context().Done():
			// クライアントが切断された
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
		}

		// カメラが解放されたら終了
		frame, err = h.controller.PreviewJPEG()
		if err != nil {
			return
		}
	}
}

// writeMJPEGFrame はmultipartの1パートとしてJPEGを書き込む
func writeMJPEGFrame(w io.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// DownloadStrip は完成したストリップをPNGファイルとして返す
func (h *BoothHandler) DownloadStrip(c *gin.Context) {
	composite, err := h.controller.Composite()
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := composite.PNG()
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", booth.DownloadFilename))
	c.Data(http.StatusOK, "image/png", data)
}

// GetStrip は完成したストリップをdata URIで返す
func (h *BoothHandler) GetStrip(c *gin.Context) {
	composite, err := h.controller.Composite()
	if err != nil {
		respondError(c, err)
		return
	}

	uri, err := composite.DataURI()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StripResponse{
		DataURI:  uri,
		Width:    composite.Width,
		Height:   composite.Height,
		Filename: booth.DownloadFilename,
	})
}

// NotFound は未定義のパスに対するハンドラ
func (h *BoothHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:     "not_found",
		Message:   "指定されたパスは存在しません",
		Details:   stringPtr(c.Request.URL.Path),
		Timestamp: time.Now(),
	})
}

// ヘルパー関数

// respondError はエラーの種類に応じたステータスコードでErrorResponseを返す
func respondError(c *gin.Context, err error) {
	status, code, message := classifyError(err)
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   stringPtr(err.Error()),
		Timestamp: time.Now(),
	})
}

// classifyError はエラーをHTTPステータスとエラーコードに変換する
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable, "camera_unavailable", "カメラにアクセスできませんでした。接続と権限を確認してください"
	case errors.Is(err, booth.ErrCompositeFailed):
		return http.StatusInternalServerError, "composite_failed", "フィルムストリップを作成できませんでした"
	case errors.Is(err, booth.ErrSessionBusy):
		return http.StatusConflict, "session_busy", "撮影中のため操作できません"
	case errors.Is(err, booth.ErrSequenceRunning):
		return http.StatusConflict, "sequence_running", "撮影シーケンスは既に実行中です"
	case errors.Is(err, booth.ErrInvalidPhase):
		return http.StatusConflict, "invalid_phase", "現在の画面では実行できません"
	case errors.Is(err, booth.ErrNoComposite):
		return http.StatusNotFound, "strip_not_found", "フィルムストリップはまだ作成されていません"
	default:
		return http.StatusInternalServerError, "internal_error", "内部エラーが発生しました"
	}
}

// stringPtr は文字列のポインタを返すヘルパー関数
func stringPtr(s string) *string {
	return &s
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"photobooth/internal/booth"
	"photobooth/internal/camera"
	"photobooth/internal/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// instantClock は待ち時間なしで進むClock
type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (instantClock) Now() time.Time { return time.Now() }

// testConfig はテスト用の設定を作成する
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0 // ランダムポートを使用
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Camera.Source = string(camera.SourceTypeTestPattern)
	return cfg
}

// newMockCameras はモック映像ソースを返すカメラマネージャーを作成する
func newMockCameras(t *testing.T) (*camera.DefaultManager, *camera.MockVideoSource) {
	t.Helper()

	source := camera.NewMockVideoSource(
		camera.VideoSourceInfo{ID: "mock", Name: "テストカメラ", Type: camera.SourceTypeTestPattern},
		camera.SolidJPEG(160, 90, color.RGBA{R: 40, G: 120, B: 200, A: 255}),
	)

	factory := camera.NewVideoSourceFactory()
	factory.Register(camera.SourceTypeTestPattern, func(camera.SourceConfig) (camera.VideoSource, error) {
		return source, nil
	})

	manager := camera.NewDefaultManager(camera.NewMockDiscovery(nil), factory, camera.ManagerConfig{
		SourceType:   camera.SourceTypeTestPattern,
		StartTimeout: time.Second,
	})
	return manager, source
}

// noCameras はデバイスが無い環境のカメラマネージャー
func noCameras() *camera.DefaultManager {
	return camera.NewDefaultManager(camera.NewMockDiscovery(nil), camera.NewVideoSourceFactory(), camera.ManagerConfig{
		SourceType: camera.SourceTypeUSBCamera,
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) booth.Snapshot {
	t.Helper()

	var snap booth.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("スナップショットのデコードに失敗: %v (%s)", err, rec.Body.String())
	}
	return snap
}

// waitForPhase はセッションが指定フェーズになるまで待つ
func waitForPhase(t *testing.T, handler http.Handler, phase booth.Phase) booth.Snapshot {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := decodeSnapshot(t, doRequest(t, handler, http.MethodGet, "/api/session", ""))
		if snap.Phase == phase {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("フェーズ %s になりませんでした", phase)
	return booth.Snapshot{}
}

// TestServerStartAndShutdown はサーバーの起動とシャットダウンをテストする
func TestServerStartAndShutdown(t *testing.T) {
	cameras, _ := newMockCameras(t)
	srv := New(testConfig(), cameras, WithClock(instantClock{}))

	// テスト用のコンテキスト（タイムアウト付き）
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// サーバーを別ゴルーチンで起動
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// サーバーが起動するまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == "" {
		t.Fatal("サーバーが起動しませんでした")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	if err != nil {
		t.Fatalf("HTTPリクエストでエラーが発生しました: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("予期しないステータスコード: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// コンテキストをキャンセルしてサーバーを停止
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("サーバーの起動/停止でエラーが発生しました: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}
}

// TestServerEndpoints はサーバーのエンドポイントをテストする
func TestServerEndpoints(t *testing.T) {
	cameras, _ := newMockCameras(t)
	srv := New(testConfig(), cameras)
	handler := srv.Handler()

	testCases := []struct {
		name           string
		endpoint       string
		expectedStatus int
		contentType    string
	}{
		{"ルートエンドポイント", "/", http.StatusOK, "text/html"},
		{"スクリプト", "/assets/app.js", http.StatusOK, "javascript"},
		{"スタイルシート", "/assets/style.css", http.StatusOK, "text/css"},
		{"ヘルスチェックエンドポイント", "/health", http.StatusOK, "application/json"},
		{"ステータスエンドポイント", "/api/status", http.StatusOK, "application/json"},
		{"セッションエンドポイント", "/api/session", http.StatusOK, "application/json"},
		{"存在しないパス", "/api/unknown", http.StatusNotFound, "application/json"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodGet, tc.endpoint, "")

			if rec.Code != tc.expectedStatus {
				t.Errorf("予期しないステータスコード: got %d, want %d", rec.Code, tc.expectedStatus)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, tc.contentType) {
				t.Errorf("予期しないContent-Type: got %q, want %q", ct, tc.contentType)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	cameras, _ := newMockCameras(t)
	srv := New(testConfig(), cameras)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/status", "")

	var status StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if status.Status != "running" || status.Server.Host != "127.0.0.1" {
		t.Errorf("Unexpected status: %+v", status)
	}
	if status.Camera.Source != "test_pattern" || status.Camera.Width != 1280 {
		t.Errorf("Unexpected camera info: %+v", status.Camera)
	}
	if status.Session.Phase != booth.PhaseIdle || status.Session.View != booth.ViewLanding {
		t.Errorf("Unexpected session: %+v", status.Session)
	}
}

func TestSessionFlow(t *testing.T) {
	cameras, source := newMockCameras(t)
	srv := New(testConfig(), cameras, WithClock(instantClock{}))
	defer srv.Shutdown()
	handler := srv.Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/session/enter", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("enter: status %d: %s", rec.Code, rec.Body.String())
	}
	if snap := decodeSnapshot(t, rec); snap.Phase != booth.PhaseReady || snap.View != booth.ViewCapture {
		t.Fatalf("enter: unexpected snapshot %+v", snap)
	}

	rec = doRequest(t, handler, http.MethodPut, "/api/session/filter", `{"grayscale":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("filter: status %d: %s", rec.Code, rec.Body.String())
	}
	if snap := decodeSnapshot(t, rec); !snap.Grayscale {
		t.Error("filter: grayscale was not applied")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/session/capture", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("capture: status %d: %s", rec.Code, rec.Body.String())
	}

	snap := waitForPhase(t, handler, booth.PhaseResult)
	if snap.Frames != 4 || !snap.HasComposite || snap.CameraActive {
		t.Errorf("result: unexpected snapshot %+v", snap)
	}
	if source.Stops() != 1 {
		t.Errorf("カメラが解放されていません: stops=%d", source.Stops())
	}

	// PNGのダウンロード
	rec = doRequest(t, handler, http.MethodGet, "/api/strip.png", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("strip.png: status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("strip.png: Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="photostrip.png"` {
		t.Errorf("strip.png: Content-Disposition = %q", cd)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("strip.png: PNGデコードに失敗: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 540 || b.Dy() != 1225 {
		t.Errorf("strip.png: size = %v", b)
	}

	// data URI
	rec = doRequest(t, handler, http.MethodGet, "/api/strip", "")
	var strip StripResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &strip); err != nil {
		t.Fatalf("strip: デコードに失敗: %v", err)
	}
	if !strings.HasPrefix(strip.DataURI, "data:image/png;base64,") || strip.Filename != "photostrip.png" {
		t.Errorf("strip: unexpected response %.80s", strip.DataURI)
	}

	// やり直し
	rec = doRequest(t, handler, http.MethodPost, "/api/session/restart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("restart: status %d", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.Phase != booth.PhaseIdle || snap.Frames != 0 || snap.HasComposite {
		t.Errorf("restart: unexpected snapshot %+v", snap)
	}
	if rec := doRequest(t, handler, http.MethodGet, "/api/strip.png", ""); rec.Code != http.StatusNotFound {
		t.Errorf("restart後のstrip.png: status %d", rec.Code)
	}
}

func TestWithEventListener(t *testing.T) {
	var (
		mu    sync.Mutex
		kinds []booth.EventKind
	)
	listener := func(ev booth.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	}

	cameras, _ := newMockCameras(t)
	srv := New(testConfig(), cameras, WithClock(instantClock{}), WithEventListener(listener))
	defer srv.Shutdown()
	handler := srv.Handler()

	doRequest(t, handler, http.MethodPost, "/api/session/enter", "")
	doRequest(t, handler, http.MethodPost, "/api/session/capture", "")
	waitForPhase(t, handler, booth.PhaseResult)

	mu.Lock()
	defer mu.Unlock()

	flashes := 0
	for _, kind := range kinds {
		if kind == booth.EventFlash {
			flashes++
		}
	}
	if flashes != 4 {
		t.Errorf("フラッシュイベントが4回届くべき: got %d (%v)", flashes, kinds)
	}
}

func TestErrorResponses(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"カメラなしで入場", http.MethodPost, "/api/session/enter", "", http.StatusServiceUnavailable, "camera_unavailable"},
		{"入場前に撮影", http.MethodPost, "/api/session/capture", "", http.StatusConflict, "invalid_phase"},
		{"フィルター指定なし", http.MethodPut, "/api/session/filter", `{}`, http.StatusBadRequest, "invalid_request"},
		{"不正なJSON", http.MethodPut, "/api/session/filter", `grayscale`, http.StatusBadRequest, "invalid_request"},
		{"ストリップ未作成", http.MethodGet, "/api/strip.png", "", http.StatusNotFound, "strip_not_found"},
		{"プレビュー不可", http.MethodGet, "/api/camera/stream", "", http.StatusServiceUnavailable, "camera_unavailable"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := New(testConfig(), noCameras())
			rec := doRequest(t, srv.Handler(), tc.method, tc.path, tc.body)

			if rec.Code != tc.wantStatus {
				t.Fatalf("予期しないステータスコード: got %d, want %d (%s)", rec.Code, tc.wantStatus, rec.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
			}
			if resp.Error != tc.wantError || resp.Message == "" || resp.Timestamp.IsZero() {
				t.Errorf("Unexpected error response: %+v", resp)
			}
		})
	}
}

func TestCameraStream(t *testing.T) {
	cameras, _ := newMockCameras(t)
	srv := New(testConfig(), cameras)
	defer srv.Shutdown()
	handler := srv.Handler()

	if rec := doRequest(t, handler, http.MethodPost, "/api/session/enter", ""); rec.Code != http.StatusOK {
		t.Fatalf("enter: status %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/camera/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if strings.Count(body, "--frame\r\n") < 1 || !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Errorf("MJPEGフレームが書き込まれていません: %.60q", body)
	}
}

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"カメラ", fmt.Errorf("wrap: %w", camera.ErrDeviceUnavailable), http.StatusServiceUnavailable, "camera_unavailable"},
		{"合成失敗", fmt.Errorf("%w: decode", booth.ErrCompositeFailed), http.StatusInternalServerError, "composite_failed"},
		{"撮影中", booth.ErrSessionBusy, http.StatusConflict, "session_busy"},
		{"シーケンス実行中", booth.ErrSequenceRunning, http.StatusConflict, "sequence_running"},
		{"フェーズ不正", booth.ErrInvalidPhase, http.StatusConflict, "invalid_phase"},
		{"ストリップなし", booth.ErrNoComposite, http.StatusNotFound, "strip_not_found"},
		{"その他", fmt.Errorf("unknown"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, code, message := classifyError(tc.err)
			if status != tc.wantStatus || code != tc.wantCode || message == "" {
				t.Errorf("classifyError = (%d, %s, %q), want (%d, %s)", status, code, message, tc.wantStatus, tc.wantCode)
			}
		})
	}
}

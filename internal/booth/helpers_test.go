package booth

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"photobooth/internal/camera"
)

// fakeClock は待ち時間を記録して即座に発火するClock
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waits = append(f.waits, d)
	f.now = f.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

// eventRecorder は受け取ったイベントを記録する
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Kind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// fakeStream は呼ばれるたびに次の色の単色フレームを返すカメラストリーム
type fakeStream struct {
	mu       sync.Mutex
	colors   []color.RGBA
	calls    int
	releases int
	failAt   int // この回数目の呼び出しで失敗する（0は失敗しない）

	block   chan struct{} // nilでなければ撮影時にこれが閉じられるまで待つ
	entered chan struct{}
	once    sync.Once
}

var testColors = []color.RGBA{
	{R: 220, G: 30, B: 30, A: 255},
	{R: 30, G: 200, B: 40, A: 255},
	{R: 30, G: 40, B: 220, A: 255},
	{R: 230, G: 210, B: 20, A: 255},
}

func newFakeStream() *fakeStream {
	return &fakeStream{colors: testColors}
}

func (s *fakeStream) ID() string { return "fake-stream" }

func (s *fakeStream) CurrentFrame(ctx context.Context) (image.Image, error) {
	if s.block != nil {
		s.once.Do(func() { close(s.entered) })
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return nil, errors.New("フレームが取得できません")
	}
	c := s.colors[(s.calls-1)%len(s.colors)]
	return solidImage(160, 90, c), nil
}

func (s *fakeStream) LatestJPEG() ([]byte, error) {
	return camera.SolidJPEG(16, 9, color.White), nil
}

func (s *fakeStream) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

func (s *fakeStream) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

func (s *fakeStream) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeCameras はRequestAccessで決まったストリームかエラーを返す
type fakeCameras struct {
	stream *fakeStream
	err    error
}

func (f *fakeCameras) RequestAccess(ctx context.Context, constraints camera.Constraints) (camera.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func solidFrame(t *testing.T, index int, c color.Color) Frame {
	t.Helper()

	frame, err := NewFrame(index, solidImage(160, 90, c), 90, time.Now())
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	return frame
}

// assertColorNear はJPEGの誤差を許容して色を比較する
func assertColorNear(t *testing.T, label string, got color.Color, want color.RGBA) {
	t.Helper()

	const tolerance = 12
	r, g, b, _ := got.RGBA()
	diff := func(a uint32, b uint8) int {
		d := int(a>>8) - int(b)
		if d < 0 {
			return -d
		}
		return d
	}
	if diff(r, want.R) > tolerance || diff(g, want.G) > tolerance || diff(b, want.B) > tolerance {
		t.Errorf("%s: 色が一致しません got=(%d,%d,%d) want=(%d,%d,%d)", label, r>>8, g>>8, b>>8, want.R, want.G, want.B)
	}
}

func decodeFrame(t *testing.T, frame Frame) image.Image {
	t.Helper()

	img, err := jpeg.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		t.Fatalf("フレーム %d をデコードできません: %v", frame.Index, err)
	}
	return img
}

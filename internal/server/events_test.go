package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"photobooth/internal/booth"
)

// sseReader はServer-Sent Eventsを1件ずつ読み出す
type sseReader struct {
	scanner *bufio.Scanner
}

func (r *sseReader) next() (string, string, bool) {
	var name, data string
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data, true
		}
	}
	return "", "", false
}

func TestSessionEvents(t *testing.T) {
	cameras, _ := newMockCameras(t)
	srv := New(testConfig(), cameras, WithClock(instantClock{}))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown()

	resp, err := http.Get(ts.URL + "/api/session/events")
	if err != nil {
		t.Fatalf("SSE接続に失敗: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan [2]string, 256)
	go func() {
		defer close(events)
		reader := &sseReader{scanner: bufio.NewScanner(resp.Body)}
		for {
			name, data, ok := reader.next()
			if !ok {
				return
			}
			events <- [2]string{name, data}
		}
	}()

	receive := func(want string) booth.Event {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					t.Fatalf("%s を受信する前に接続が切れました", want)
				}
				if ev[0] != want {
					continue
				}
				var out booth.Event
				if want != "snapshot" {
					if err := json.Unmarshal([]byte(ev[1]), &out); err != nil {
						t.Fatalf("イベントのデコードに失敗: %v (%s)", err, ev[1])
					}
				}
				return out
			case <-timeout:
				t.Fatalf("%s を受信できませんでした", want)
			}
		}
	}

	// 接続直後に現在の状態が届く
	receive("snapshot")

	enter, err := http.Post(ts.URL+"/api/session/enter", "application/json", nil)
	if err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	enter.Body.Close()

	ev := receive("phase")
	if ev.Phase != booth.PhaseReady || ev.View != booth.ViewCapture {
		t.Errorf("Unexpected phase event: %+v", ev)
	}

	capture, err := http.Post(ts.URL+"/api/session/capture", "application/json", nil)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	capture.Body.Close()
	if capture.StatusCode != http.StatusAccepted {
		t.Fatalf("capture: status %d", capture.StatusCode)
	}

	if ev := receive("countdown"); ev.Count != 3 || ev.Shot != 1 {
		t.Errorf("Unexpected countdown event: %+v", ev)
	}
	if ev := receive("flash"); ev.Duration != 300 {
		t.Errorf("Unexpected flash event: %+v", ev)
	}
	if ev := receive("processing"); ev.Count != 5 || ev.View != booth.ViewPrinting {
		t.Errorf("Unexpected processing event: %+v", ev)
	}
}

package booth

// EventKind はセッションイベントの種類
type EventKind string

const (
	EventPhase      EventKind = "phase"      // フェーズと表示画面の切り替え
	EventCountdown  EventKind = "countdown"  // 撮影前カウントダウン（0でオーバーレイ非表示）
	EventFlash      EventKind = "flash"      // フラッシュ表示
	EventCaptured   EventKind = "captured"   // 1枚撮影した
	EventProcessing EventKind = "processing" // 印刷中カウントダウン
	EventFilter     EventKind = "filter"     // フィルター切り替え
	EventNotice     EventKind = "notice"     // 利用者への通知（エラー）
)

// Event はセッションの状態変化を画面側に伝える
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Phase     Phase     `json:"phase,omitempty"`
	View      View      `json:"view,omitempty"`
	Shot      int       `json:"shot,omitempty"`        // 何枚目か（1始まり）
	Count     int       `json:"count"`                 // カウントダウンの値
	Duration  int64     `json:"duration_ms,omitempty"` // フラッシュ表示時間
	Grayscale bool      `json:"grayscale"`
	Message   string    `json:"message,omitempty"`
}

// EventFunc はイベントを受け取るコールバック
// 呼び出し中にセッションの操作をしてはならない
type EventFunc func(Event)

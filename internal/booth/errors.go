package booth

import "errors"

var (
	// ErrCompositeFailed はいずれかのフレームのデコードに失敗し、ストリップを作れなかったことを表す
	ErrCompositeFailed = errors.New("フィルムストリップの合成に失敗しました")

	// ErrSessionBusy は撮影または印刷中のため操作を受け付けられないことを表す
	ErrSessionBusy = errors.New("撮影中のため操作できません")

	// ErrInvalidPhase は現在のフェーズでは実行できない操作であることを表す
	ErrInvalidPhase = errors.New("現在の状態では実行できません")

	// ErrSequenceRunning はシーケンサーが既に動作中であることを表す
	ErrSequenceRunning = errors.New("シーケンスは既に実行中です")

	// ErrNoComposite はまだストリップが生成されていないことを表す
	ErrNoComposite = errors.New("フィルムストリップはまだありません")
)

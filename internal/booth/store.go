package booth

import "sync"

// PhotoStore はセッション中に撮影したフレームを撮影順に保持する
type PhotoStore struct {
	frames []Frame
	mu     sync.RWMutex
}

// NewPhotoStore は空のPhotoStoreを作成する
func NewPhotoStore() *PhotoStore {
	return &PhotoStore{
		frames: make([]Frame, 0, DefaultShots),
	}
}

// Append はフレームを末尾に追加する
// 重複チェックや上限チェックは行わない（枚数はシーケンサーが制御する）
func (s *PhotoStore) Append(frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = append(s.frames, frame)
}

// Clear は全てのフレームを破棄する
func (s *PhotoStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = make([]Frame, 0, DefaultShots)
}

// Frames は撮影順のフレーム一覧のコピーを返す
func (s *PhotoStore) Frames() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frames := make([]Frame, len(s.frames))
	copy(frames, s.frames)
	return frames
}

// Len は保持しているフレーム数を返す
func (s *PhotoStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.frames)
}

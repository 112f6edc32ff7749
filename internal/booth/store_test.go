package booth

import (
	"image/color"
	"testing"
)

func TestPhotoStore(t *testing.T) {
	store := NewPhotoStore()
	if store.Len() != 0 {
		t.Fatalf("Expected empty store, got %d", store.Len())
	}

	for i := 0; i < 3; i++ {
		store.Append(solidFrame(t, i, color.White))
	}
	// 同じフレームでも重複チェックはしない
	store.Append(solidFrame(t, 2, color.White))

	frames := store.Frames()
	if len(frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(frames))
	}
	for i, want := range []int{0, 1, 2, 2} {
		if frames[i].Index != want {
			t.Errorf("frames[%d].Index = %d, want %d", i, frames[i].Index, want)
		}
	}

	// 返されたスライスを変更してもストアには影響しない
	frames[0] = Frame{Index: 99}
	if store.Frames()[0].Index != 0 {
		t.Error("Frames() がコピーを返していません")
	}

	store.Clear()
	if store.Len() != 0 || len(store.Frames()) != 0 {
		t.Errorf("Clear後にフレームが残っています: %d", store.Len())
	}
}

package booth

import "time"

// Clock は待ち時間の経過を通知する
// テストでは即座に発火する実装に差し替える
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type realClock struct{}

// RealClock は実時間で動作するClockを返す
func RealClock() Clock {
	return realClock{}
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (realClock) Now() time.Time {
	return time.Now()
}

package signaling

import "time"

// Timer — отменяемый одноразовый таймер
type Timer interface {
	Stop() bool
}

// Clock абстрагирует время, чтобы таймеры комнат были проверяемы в тестах
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

package signaling

import (
	"sync"
	"testing"
)

// Конкурентные SendRaw против dispose не должны ронять процесс
func TestSendRawDuringDisposeDoesNotPanic(t *testing.T) {
	for i := 0; i < 500; i++ {
		c := NewConnection(nil)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for s := 0; s < 4; s++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						t.Errorf("SendRaw panicked: %v", r)
					}
				}()
				<-start
				for j := 0; j < 16; j++ {
					c.SendRaw([]byte("payload"))
				}
			}()
		}
		close(start)
		c.dispose()
		wg.Wait()
	}
}

func TestSendRawAfterDispose(t *testing.T) {
	c := NewConnection(nil)
	c.dispose()

	if err := c.SendRaw([]byte("payload")); err != ErrConnectionDisposed {
		t.Fatalf("err = %v, want ErrConnectionDisposed", err)
	}
}

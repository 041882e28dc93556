package misc

import (
	"bytes"
	"sync"
	"testing"
)

func TestPool_GetPutResets(t *testing.T) {
	pool := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })

	buf := pool.Get()
	if buf == nil {
		t.Fatal("Get returned nil")
	}
	buf.WriteString(`{"numbackends":3}`)
	pool.Put(buf)

	if buf.Len() != 0 {
		t.Fatalf("Put did not reset buffer, len=%d", buf.Len())
	}
}

func TestPool_Concurrent(t *testing.T) {
	pool := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })

	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := pool.Get()
			b.WriteString("x")
			pool.Put(b)
		}()
	}
	wg.Wait()
}

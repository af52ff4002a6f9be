package pool

import (
	"sync"
	"testing"
)

func TestBytePoolGetPut(t *testing.T) {
	p := NewBytePool(1024)
	buf := p.Get()
	if len(buf) != 1024 {
		t.Fatalf("len = %d", len(buf))
	}
	p.Put(buf[:10])
	if again := p.Get(); len(again) != 1024 {
		t.Fatalf("len after reslice = %d", len(again))
	}

	p.Put(make([]byte, 10))
	st := p.Stats()
	if st["gets"] != 2 || st["puts"] != 1 || st["size"] != 1024 {
		t.Fatalf("stats = %v", st)
	}
}

func TestBytePoolConcurrent(t *testing.T) {
	p := NewBytePool(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b := p.Get()
				b[0] = byte(g)
				p.Put(b)
			}
		}(g)
	}
	wg.Wait()
	st := p.Stats()
	if st["gets"] != 8000 || st["puts"] != 8000 {
		t.Fatalf("stats = %v", st)
	}
	if st["allocs"] < 1 || st["allocs"] > 8000 {
		t.Fatalf("allocs = %d", st["allocs"])
	}
}

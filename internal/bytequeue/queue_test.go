package bytequeue

import (
	"bytes"
	"testing"
)

func TestQueueAppendDrain(t *testing.T) {
	q := New(8)
	q.Append([]byte("hello "))
	q.AppendString("world")
	if q.Len() != 11 {
		t.Fatalf("Len = %d, want 11", q.Len())
	}
	q.Drain(6)
	if got := string(q.Bytes()); got != "world" {
		t.Fatalf("Bytes = %q, want %q", got, "world")
	}
	q.Drain(100)
	if q.Len() != 0 {
		t.Fatalf("Len after over-drain = %d", q.Len())
	}
}

func TestQueueIndexAndPop(t *testing.T) {
	q := New(0)
	q.AppendString("one\ntwo\nthree")

	var lines []string
	for {
		i := q.IndexByte('\n')
		if i < 0 {
			break
		}
		line := q.Pop(i)
		q.Drain(1)
		lines = append(lines, string(line))
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("lines = %q", lines)
	}
	if got := string(q.Bytes()); got != "three" {
		t.Fatalf("remainder = %q", got)
	}
	if q.Index([]byte("re")) != 2 {
		t.Fatalf("Index = %d", q.Index([]byte("re")))
	}
}

func TestQueueCompactionPreservesOrder(t *testing.T) {
	q := New(16)
	var want bytes.Buffer
	chunk := bytes.Repeat([]byte{'x'}, 1000)
	for i := 0; i < 50; i++ {
		chunk[0] = byte('a' + i%26)
		q.Append(chunk)
		want.Write(chunk)
		q.Drain(900)
		want.Next(900)
	}
	if !bytes.Equal(q.Bytes(), want.Bytes()) {
		t.Fatalf("queue diverged after compaction: len %d vs %d", q.Len(), want.Len())
	}
}

func TestQueueWriter(t *testing.T) {
	q := New(0)
	n, err := q.Write([]byte("abc"))
	if n != 3 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	q.Reset()
	if q.Len() != 0 {
		t.Fatal("Reset did not empty queue")
	}
}

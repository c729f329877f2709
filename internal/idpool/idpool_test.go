package idpool

import "testing"

func TestAcquireSequential(t *testing.T) {
	p := New(0)
	for want := uint32(0); want < 5; want++ {
		if got := p.Acquire(); got != want {
			t.Fatalf("Acquire() = %d, want %d", got, want)
		}
	}
}

func TestReleaseReusesSmallestFreed(t *testing.T) {
	p := New(0)
	a := p.Acquire() // 0
	b := p.Acquire() // 1
	c := p.Acquire() // 2
	p.Release(b)
	p.Release(a)

	if got := p.Acquire(); got != a {
		t.Fatalf("Acquire() after release = %d, want smallest freed %d", got, a)
	}
	if got := p.Acquire(); got != b {
		t.Fatalf("Acquire() = %d, want %d", got, b)
	}
	if got := p.Acquire(); got != c+1 {
		t.Fatalf("Acquire() = %d, want next fresh id %d", got, c+1)
	}
}

func TestReserve(t *testing.T) {
	p := New(1)
	if got := p.Acquire(); got != 1 {
		t.Fatalf("Acquire() with reserve(1) = %d, want 1 (id 0 reserved for root)", got)
	}
}

package imagepool

import (
	"math/rand"
	"testing"

	"go-attentiongan/tensor"
)

// batch builds [n, 1, 1, 1] images holding start, start+1, ...
func batch(t *testing.T, start, n int) *tensor.Tensor {
	t.Helper()
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(start + i)
	}
	b, err := tensor.NewTensor([]int{n, 1, 1, 1}, values)
	if err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}
	return b
}

// scriptedSource replays fixed draws.
type scriptedSource struct {
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) Intn(int) int {
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v
}

func TestZeroSizeIsIdentity(t *testing.T) {
	pool, err := New(0, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	in := batch(t, 0, 3)
	out, err := pool.Query(in)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if out != in {
		t.Error("a zero-size pool should return its input unchanged")
	}
	if pool.Len() != 0 {
		t.Errorf("expected an empty pool, got %d", pool.Len())
	}
}

func TestFillPhase(t *testing.T) {
	pool, _ := New(3, &scriptedSource{})
	in := batch(t, 10, 2)
	in.RequiresGrad = true

	out, err := pool.Query(in)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if got := out.GetData(); got[0] != 10 || got[1] != 11 {
		t.Errorf("fill phase should return the input, got %v", got)
	}
	if out.RequiresGrad {
		t.Error("pool output must be detached")
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 stored images, got %d", pool.Len())
	}

	// one slot left: the first image fills it, the second goes through the swap draw
	src := &scriptedSource{floats: []float64{0.9}, ints: []int{0}}
	pool.src = src
	out, _ = pool.Query(batch(t, 20, 2))
	if got := out.GetData(); got[0] != 20 || got[1] != 10 {
		t.Errorf("expected [20 10], got %v", got)
	}
	stored := pool.Images()
	if stored[0].GetData()[0] != 21 || stored[2].GetData()[0] != 20 {
		t.Errorf("unexpected pool contents %v %v %v", stored[0], stored[1], stored[2])
	}
}

func TestFullPoolSwap(t *testing.T) {
	src := &scriptedSource{}
	pool, _ := New(2, src)
	pool.Query(batch(t, 0, 2))

	src.floats = []float64{0.2, 0.7, 0.5}
	src.ints = []int{1}
	out, err := pool.Query(batch(t, 5, 3))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// 0.2 keeps 5, 0.7 swaps 6 with slot 1 (holding 1), 0.5 is not > 0.5 so 7 is kept
	if got := out.GetData(); got[0] != 5 || got[1] != 1 || got[2] != 7 {
		t.Errorf("expected [5 1 7], got %v", got)
	}
	stored := pool.Images()
	if stored[0].GetData()[0] != 0 || stored[1].GetData()[0] != 6 {
		t.Errorf("expected pool [0 6], got [%v %v]", stored[0].GetData()[0], stored[1].GetData()[0])
	}
	if pool.Len() != pool.Size() {
		t.Errorf("pool should stay at capacity, got %d", pool.Len())
	}
}

func TestSwapRate(t *testing.T) {
	pool, _ := New(50, rand.New(rand.NewSource(1)))
	for i := 0; i < 50; i++ {
		pool.Query(batch(t, -1, 1))
	}

	const queries = 4000
	swapped := 0
	for i := 0; i < queries; i++ {
		out, _ := pool.Query(batch(t, i, 1))
		if out.GetData()[0] != float64(i) {
			swapped++
		}
	}
	rate := float64(swapped) / queries
	if rate < 0.45 || rate > 0.55 {
		t.Errorf("expected roughly half of the queries to swap, got %.3f", rate)
	}
}

func TestInvalidPool(t *testing.T) {
	if _, err := New(-1, nil); err == nil {
		t.Error("expected an error for a negative size")
	}
	if _, err := New(2, nil); err == nil {
		t.Error("expected an error for a missing random source")
	}
}

func TestFillKeepsInputOrder(t *testing.T) {
	const capacity = 5
	pool, _ := New(capacity, rand.New(rand.NewSource(4)))
	for i := 0; i < capacity; i++ {
		pool.Query(batch(t, i, 1))
	}
	stored := pool.Images()
	if len(stored) != capacity {
		t.Fatalf("expected %d stored images, got %d", capacity, len(stored))
	}
	for i, img := range stored {
		if img.GetData()[0] != float64(i) {
			t.Errorf("slot %d: expected %d, got %v", i, i, img.GetData()[0])
		}
	}
}

package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func assertData(t *testing.T, got *Tensor, want []float64) {
	t.Helper()
	if len(got.data) != len(want) {
		t.Fatalf("expected %d elements, got %d (%v)", len(want), len(got.data), got.data)
	}
	for i := range want {
		if math.Abs(got.data[i]-want[i]) > 1e-9 {
			t.Fatalf("element %d: expected %v, got %v (all: %v)", i, want[i], got.data[i], got.data)
		}
	}
}

func TestNewTensor(t *testing.T) {
	t.Run("zero filled", func(t *testing.T) {
		x, err := NewTensor([]int{2, 3}, nil)
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}
		assertData(t, x, []float64{0, 0, 0, 0, 0, 0})
	})

	t.Run("length mismatch", func(t *testing.T) {
		if _, err := NewTensor([]int{2, 2}, []float64{1, 2, 3}); err == nil {
			t.Fatal("expected an error for 3 values in a 2x2 tensor")
		}
	})

	t.Run("non-positive dimension", func(t *testing.T) {
		if _, err := NewTensor([]int{2, 0}, nil); err == nil {
			t.Fatal("expected an error for a zero dimension")
		}
	})

	t.Run("copies its inputs", func(t *testing.T) {
		values := []float64{1, 2}
		x, _ := NewTensor([]int{2}, values)
		values[0] = 99
		if x.data[0] != 1 {
			t.Errorf("tensor aliases caller data: %v", x.data)
		}
	})
}

func TestArithmeticGradients(t *testing.T) {
	a, _ := NewTensor([]int{2}, []float64{1, 2})
	b, _ := NewTensor([]int{2}, []float64{3, 4})
	a.RequiresGrad = true
	b.RequiresGrad = true

	prod, err := MulTensor(a, b)
	if err != nil {
		t.Fatalf("MulTensor failed: %v", err)
	}
	sum, err := AddTensor(prod, a)
	if err != nil {
		t.Fatalf("AddTensor failed: %v", err)
	}
	loss, _ := Sum(sum)
	loss.Backward(nil)

	// d/da (a*b + a) = b + 1, d/db = a
	assertData(t, a.Grad, []float64{4, 5})
	assertData(t, b.Grad, []float64{1, 2})
	if loss.Item() != 1*3+2*4+1+2 {
		t.Errorf("expected loss 14, got %v", loss.Item())
	}
}

func TestSharedInputAccumulates(t *testing.T) {
	x, _ := NewTensor([]int{1}, []float64{3})
	x.RequiresGrad = true
	sq, _ := MulTensor(x, x)
	sq.Backward(nil)
	assertData(t, x.Grad, []float64{6})
}

func TestSharedSubgraphRunsBackwardOnce(t *testing.T) {
	x, _ := NewTensor([]int{2}, []float64{1, 2})
	x.RequiresGrad = true
	shared, _ := ScaleTensor(x, 2)

	calls := 0
	push := shared.BackwardFunc
	shared.BackwardFunc = func(g *Tensor) {
		calls++
		push(g)
	}

	a, _ := AddTensor(shared, shared)
	b, _ := AddTensor(a, shared)
	loss, _ := Sum(b)
	loss.Backward(nil)

	if calls != 1 {
		t.Errorf("expected the shared tensor to push its gradient once, got %d", calls)
	}
	assertData(t, shared.Grad, []float64{3, 3})
	assertData(t, x.Grad, []float64{6, 6})

	t.Run("deep diamond", func(t *testing.T) {
		y, _ := NewTensor([]int{1}, []float64{1})
		y.RequiresGrad = true
		level := y
		// each level doubles the number of paths from the root to y
		for i := 0; i < 40; i++ {
			level, _ = AddTensor(level, level)
		}
		level.Backward(nil)
		assertData(t, y.Grad, []float64{math.Pow(2, 40)})
	})

	t.Run("second pass accumulates", func(t *testing.T) {
		loss.Backward(nil)
		assertData(t, x.Grad, []float64{12, 12})
	})
}

func TestFrozenTensorGetsNoGradient(t *testing.T) {
	w, _ := NewTensor([]int{2}, []float64{1, 2})
	x, _ := NewTensor([]int{2}, []float64{5, 6})
	x.RequiresGrad = true

	out, _ := MulTensor(w, x)
	loss, _ := Sum(out)
	loss.Backward(nil)

	if w.Grad != nil {
		t.Errorf("frozen tensor received a gradient: %v", w.Grad)
	}
	assertData(t, x.Grad, []float64{1, 2})
}

func TestReductions(t *testing.T) {
	x, _ := NewTensor([]int{2, 2}, []float64{1, 2, 3, 4})
	x.RequiresGrad = true

	mean, err := Mean(x)
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}
	if mean.Item() != 2.5 {
		t.Errorf("expected mean 2.5, got %v", mean.Item())
	}
	mean.Backward(nil)
	assertData(t, x.Grad, []float64{0.25, 0.25, 0.25, 0.25})
}

func TestExpandAndScaleBy(t *testing.T) {
	s := Scalar(2)
	s.RequiresGrad = true

	e, err := Expand(s, []int{1, 1, 2, 2})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	assertData(t, e, []float64{2, 2, 2, 2})

	x, _ := NewTensor([]int{1, 1, 2, 2}, []float64{1, 2, 3, 4})
	scaled, err := ScaleBy(x, s)
	if err != nil {
		t.Fatalf("ScaleBy failed: %v", err)
	}
	assertData(t, scaled, []float64{2, 4, 6, 8})

	total, _ := AddTensor(e, scaled)
	loss, _ := Sum(total)
	loss.Backward(nil)
	// 4 from the expand plus sum(x) = 10 from the scale
	assertData(t, s.Grad, []float64{14})

	if _, err := Expand(x, []int{4}); err == nil {
		t.Error("expected Expand to reject a multi-element tensor")
	}
}

func TestDetach(t *testing.T) {
	x, _ := NewTensor([]int{2}, []float64{1, 2})
	x.RequiresGrad = true
	y, _ := ScaleTensor(x, 3)

	d := Detach(y)
	if d.RequiresGrad || d.Parents != nil || d.BackwardFunc != nil {
		t.Fatalf("detached tensor still has graph state: %v", d)
	}
	assertData(t, d, []float64{3, 6})

	d.data[0] = 100
	if y.data[0] != 3 {
		t.Error("detached tensor shares storage with its source")
	}
}

func TestPermuteMatchesTranspose(t *testing.T) {
	x, _ := NewTensor([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	p, err := Permute(x, []int{1, 0})
	if err != nil {
		t.Fatalf("Permute failed: %v", err)
	}
	tr, _ := Transpose(x)
	assertData(t, p, tr.data)

	if _, err := Permute(x, []int{0, 0}); err == nil {
		t.Error("expected an error for a repeated axis")
	}
}

func TestMatMul(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int{3, 2}, []float64{1, 2, 3, 4, 5, 6})
	c, err := MatMulTensor(a, b)
	if err != nil {
		t.Fatalf("MatMulTensor failed: %v", err)
	}
	assertData(t, c, []float64{22, 28, 49, 64})
}

func TestAddTensorBroadcast(t *testing.T) {
	x, _ := NewTensor([]int{2, 2, 1, 1}, []float64{1, 2, 3, 4})
	bias, _ := NewTensor([]int{2}, []float64{10, 20})
	bias.RequiresGrad = true

	out, err := AddTensorBroadcast(x, bias)
	if err != nil {
		t.Fatalf("AddTensorBroadcast failed: %v", err)
	}
	assertData(t, out, []float64{11, 22, 13, 24})

	loss, _ := Sum(out)
	loss.Backward(nil)
	assertData(t, bias.Grad, []float64{2, 2})
}

func TestSpatialOps(t *testing.T) {
	t.Run("transpose", func(t *testing.T) {
		// 2x3 plane:  0 1 2 / 3 4 5
		x, _ := NewTensor([]int{1, 1, 2, 3}, []float64{0, 1, 2, 3, 4, 5})
		out, err := TransposeSpatial(x)
		if err != nil {
			t.Fatalf("TransposeSpatial failed: %v", err)
		}
		if s := out.GetShape(); s[2] != 3 || s[3] != 2 {
			t.Fatalf("expected [1 1 3 2], got %v", s)
		}
		assertData(t, out, []float64{0, 3, 1, 4, 2, 5})
	})

	t.Run("flip", func(t *testing.T) {
		x, _ := NewTensor([]int{1, 2, 2, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
		out, err := FlipSpatial(x)
		if err != nil {
			t.Fatalf("FlipSpatial failed: %v", err)
		}
		assertData(t, out, []float64{4, 3, 2, 1, 8, 7, 6, 5})
	})

	t.Run("gradients are routed back", func(t *testing.T) {
		x, _ := NewTensor([]int{1, 1, 2, 2}, []float64{1, 2, 3, 4})
		x.RequiresGrad = true
		tr, _ := TransposeSpatial(x)
		fl, _ := FlipSpatial(tr)
		weights, _ := NewTensor([]int{1, 1, 2, 2}, []float64{1, 10, 100, 1000})
		prod, _ := MulTensor(fl, weights)
		loss, _ := Sum(prod)
		loss.Backward(nil)
		// fl = [4 2 3 1] so x[3] meets weight 1, x[1] weight 10, x[2] weight 100, x[0] weight 1000
		assertData(t, x.Grad, []float64{1000, 10, 100, 1})
	})

	t.Run("rejects non-image tensors", func(t *testing.T) {
		x, _ := NewTensor([]int{2, 2}, nil)
		if _, err := TransposeSpatial(x); err == nil {
			t.Error("expected an error for a 2D tensor")
		}
	})
}

func TestConcatAndSlice(t *testing.T) {
	a, _ := NewTensor([]int{1, 1, 1, 2}, []float64{1, 2})
	b, _ := NewTensor([]int{2, 1, 1, 2}, []float64{3, 4, 5, 6})
	b.RequiresGrad = true

	cat, err := Concat(a, b)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if cat.GetShape()[0] != 3 {
		t.Fatalf("expected 3 rows, got %v", cat.GetShape())
	}
	assertData(t, cat, []float64{1, 2, 3, 4, 5, 6})

	row, err := SliceBatch(cat, 2, 3)
	if err != nil {
		t.Fatalf("SliceBatch failed: %v", err)
	}
	assertData(t, row, []float64{5, 6})

	loss, _ := Sum(row)
	loss.Backward(nil)
	assertData(t, b.Grad, []float64{0, 0, 1, 1})

	if _, err := SliceBatch(cat, 2, 2); err == nil {
		t.Error("expected an error for an empty range")
	}
	odd, _ := NewTensor([]int{1, 2, 1, 1}, nil)
	if _, err := Concat(a, odd); err == nil {
		t.Error("expected an error for mismatched trailing shapes")
	}
	scalar, _ := NewTensor(nil, []float64{1})
	if _, err := Concat(scalar, a); err == nil {
		t.Error("expected an error for a first part without a batch axis")
	}
	if _, err := Concat(a, nil); err == nil {
		t.Error("expected an error for a nil part")
	}
}

func TestChannelOps(t *testing.T) {
	x, _ := NewTensor([]int{2, 3, 1, 2}, []float64{0, 1, 2, 3, 4, 5, 10, 11, 12, 13, 14, 15})
	x.RequiresGrad = true

	mid, err := SliceChannels(x, 1, 3)
	if err != nil {
		t.Fatalf("SliceChannels failed: %v", err)
	}
	assertData(t, mid, []float64{2, 3, 4, 5, 12, 13, 14, 15})

	mask, _ := NewTensor([]int{2, 1, 1, 2}, []float64{1, 0, 2, 3})
	mask.RequiresGrad = true
	masked, err := MulChannelBroadcast(mid, mask)
	if err != nil {
		t.Fatalf("MulChannelBroadcast failed: %v", err)
	}
	assertData(t, masked, []float64{2, 0, 4, 0, 24, 39, 28, 45})

	loss, _ := Sum(masked)
	loss.Backward(nil)
	assertData(t, mask.Grad, []float64{2 + 4, 3 + 5, 12 + 14, 13 + 15})
	assertData(t, x.Grad, []float64{0, 0, 1, 0, 1, 0, 0, 0, 2, 3, 2, 3})

	bad, _ := NewTensor([]int{2, 2, 1, 2}, nil)
	if _, err := MulChannelBroadcast(mid, bad); err == nil {
		t.Error("expected an error for a multi-channel mask")
	}
}

func TestIm2ColAdjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	shape := []int{2, 2, 5, 5}
	x, _ := NewTensor(shape, nil)
	for i := range x.data {
		x.data[i] = rng.NormFloat64()
	}

	cols, err := Im2Col(x, 3, 3, 2, 1)
	if err != nil {
		t.Fatalf("Im2Col failed: %v", err)
	}
	out := ConvOutputSize(5, 3, 2, 1)
	if want := []int{2 * 3 * 3, 2 * out * out}; !sameShape(cols.shape, want) {
		t.Fatalf("expected column shape %v, got %v", want, cols.shape)
	}

	y, _ := NewTensor(cols.shape, nil)
	for i := range y.data {
		y.data[i] = rng.NormFloat64()
	}
	back, err := Col2Im(y, shape, 3, 3, 2, 1)
	if err != nil {
		t.Fatalf("Col2Im failed: %v", err)
	}

	// <Im2Col(x), y> == <x, Col2Im(y)>
	lhs, rhs := 0.0, 0.0
	for i := range cols.data {
		lhs += cols.data[i] * y.data[i]
	}
	for i := range x.data {
		rhs += x.data[i] * back.data[i]
	}
	if math.Abs(lhs-rhs) > 1e-9 {
		t.Errorf("Col2Im is not the adjoint of Im2Col: %v vs %v", lhs, rhs)
	}
}

func TestItemAndFinite(t *testing.T) {
	if v := Scalar(4).Item(); v != 4 {
		t.Errorf("expected 4, got %v", v)
	}
	x, _ := NewTensor([]int{2}, []float64{1, math.Inf(1)})
	if !math.IsNaN(x.Item()) {
		t.Error("Item of a multi-element tensor should be NaN")
	}
	if IsFinite(x) {
		t.Error("IsFinite should reject Inf")
	}
}

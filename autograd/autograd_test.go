package autograd

import (
	"errors"
	"math"
	"testing"

	"go-attentiongan/tensor"
)

func param(t *testing.T, values ...float64) *tensor.Tensor {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(values)}, values)
	if err != nil {
		t.Fatalf("failed to create parameter: %v", err)
	}
	p.RequiresGrad = true
	return p
}

func TestBackward(t *testing.T) {
	w := param(t, 2, 3)
	x, _ := tensor.NewTensor([]int{2}, []float64{5, 7})
	prod, _ := tensor.MulTensor(w, x)
	loss, _ := tensor.Sum(prod)

	if err := Backward(loss); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	if g := w.Grad.GetData(); g[0] != 5 || g[1] != 7 {
		t.Errorf("expected grad [5 7], got %v", g)
	}
}

func TestBackwardRejectsBadLosses(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if err := Backward(nil); err == nil {
			t.Error("expected an error for a nil loss")
		}
	})

	t.Run("non scalar", func(t *testing.T) {
		if err := Backward(param(t, 1, 2)); err == nil {
			t.Error("expected an error for a two-element loss")
		}
	})

	t.Run("non finite", func(t *testing.T) {
		w := param(t, 1)
		loss, _ := tensor.ScaleTensor(w, math.Inf(1))
		err := Backward(loss)
		if !errors.Is(err, ErrNonFinite) {
			t.Fatalf("expected ErrNonFinite, got %v", err)
		}
		if w.Grad != nil {
			t.Error("gradient was written despite the non-finite loss")
		}
	})

	t.Run("nothing trainable", func(t *testing.T) {
		if err := Backward(tensor.Scalar(1)); err != nil {
			t.Errorf("a constant loss should be a no-op, got %v", err)
		}
	})
}

func TestFreezing(t *testing.T) {
	frozen := param(t, 2)
	trained := param(t, 3)
	params := []*tensor.Tensor{frozen, trained}

	SetRequiresGrad(params[:1], false)
	prod, _ := tensor.MulTensor(frozen, trained)
	if err := Backward(prod); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	if HasGradient(params[:1]) {
		t.Error("frozen parameter has a gradient")
	}
	if !HasGradient(params[1:]) {
		t.Error("trainable parameter has no gradient")
	}

	SetRequiresGrad(params, true)
	if !frozen.RequiresGrad {
		t.Error("SetRequiresGrad(true) did not unfreeze")
	}
	trained.ZeroGrad()
	if HasGradient(params) {
		t.Error("HasGradient should ignore all-zero gradients")
	}
}

func TestLeaves(t *testing.T) {
	a := param(t, 1)
	b := param(t, 2)
	c, _ := tensor.NewTensor([]int{1}, []float64{3})

	ab, _ := tensor.AddTensor(a, b)
	abc, _ := tensor.MulTensor(ab, c)
	again, _ := tensor.AddTensor(abc, a)

	leaves := Leaves(again)
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(leaves))
	}
	seen := map[*tensor.Tensor]bool{}
	for _, l := range leaves {
		seen[l] = true
	}
	if !seen[a] || !seen[b] {
		t.Errorf("expected a and b as leaves, got %v", leaves)
	}
}

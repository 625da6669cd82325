package tensor

import (
	"fmt"
	"math"
)

// ops in this file are the pieces the GAN step needs on top of the basic arithmetic:
// scalar helpers, broadcasting, and image-layout ops on [N, C, H, W] tensors.

// Scalar builds a one-element constant.
func Scalar(v float64) *Tensor {
	return &Tensor{shape: []int{1}, data: []float64{v}}
}

// Item returns the value of a one-element tensor (NaN otherwise).
func (t *Tensor) Item() float64 {
	if t == nil || len(t.data) != 1 {
		return math.NaN()
	}
	return t.data[0]
}

// IsFinite reports whether every element is neither NaN nor Inf.
func IsFinite(t *Tensor) bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// returns a constant tensor shaped like t with every element set to v
func FullLike(t *Tensor, v float64) (*Tensor, error) {
	out, err := NewTensor(t.shape, nil)
	if err != nil {
		return nil, err
	}
	for i := range out.data {
		out.data[i] = v
	}
	return out, nil
}

// Detach copies t out of the autograd graph, like torch's .detach().
func Detach(t *Tensor) *Tensor {
	out := CloneTensor(t)
	out.RequiresGrad = false
	return out
}

// subtracts t2 from t1 element-wise
func SubTensor(t1 *Tensor, t2 *Tensor) (*Tensor, error) {
	neg, err := ScaleTensor(t2, -1)
	if err != nil {
		return nil, err
	}
	return AddTensor(t1, neg)
}

// multiplies every element by a constant
func ScaleTensor(t *Tensor, s float64) (*Tensor, error) {
	outData := make([]float64, len(t.data))
	for i, v := range t.data {
		outData[i] = v * s
	}
	out, err := NewTensor(t.shape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "scale"
		out.BackwardFunc = func(grad *Tensor) {
			g := make([]float64, len(grad.data))
			for i, v := range grad.data {
				g[i] = v * s
			}
			gt, _ := NewTensor(t.shape, g)
			t.Backward(gt)
		}
	}
	return out, nil
}

// multiplies every element of t by the one-element tensor s. gradients flow to both.
func ScaleBy(t *Tensor, s *Tensor) (*Tensor, error) {
	if Numel(s) != 1 {
		return nil, fmt.Errorf("scale_by expects a one-element scale, got shape %v", s.shape)
	}
	k := s.data[0]
	outData := make([]float64, len(t.data))
	for i, v := range t.data {
		outData[i] = v * k
	}
	out, err := NewTensor(t.shape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad || s.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t, s}
		out.Operation = "scale_by"
		out.BackwardFunc = func(grad *Tensor) {
			if t.RequiresGrad {
				g := make([]float64, len(grad.data))
				for i, v := range grad.data {
					g[i] = v * k
				}
				gt, _ := NewTensor(t.shape, g)
				t.Backward(gt)
			}
			if s.RequiresGrad {
				sum := 0.0
				for i, v := range grad.data {
					sum += v * t.data[i]
				}
				gs, _ := NewTensor(s.shape, []float64{sum})
				s.Backward(gs)
			}
		}
	}
	return out, nil
}

// Expand broadcasts a one-element tensor to shape.
func Expand(s *Tensor, shape []int) (*Tensor, error) {
	if Numel(s) != 1 {
		return nil, fmt.Errorf("expand expects a one-element tensor, got shape %v", s.shape)
	}
	out, err := NewTensor(shape, nil)
	if err != nil {
		return nil, err
	}
	for i := range out.data {
		out.data[i] = s.data[0]
	}

	if s.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{s}
		out.Operation = "expand"
		out.BackwardFunc = func(grad *Tensor) {
			sum := 0.0
			for _, v := range grad.data {
				sum += v
			}
			gs, _ := NewTensor(s.shape, []float64{sum})
			s.Backward(gs)
		}
	}
	return out, nil
}

// Sum reduces all elements to a [1] tensor.
func Sum(t *Tensor) (*Tensor, error) {
	total := 0.0
	for _, v := range t.data {
		total += v
	}
	out := Scalar(total)

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "sum"
		out.BackwardFunc = func(grad *Tensor) {
			g, _ := FullLike(t, grad.data[0])
			t.Backward(g)
		}
	}
	return out, nil
}

// Mean reduces all elements to their average as a [1] tensor.
func Mean(t *Tensor) (*Tensor, error) {
	s, err := Sum(t)
	if err != nil {
		return nil, err
	}
	return ScaleTensor(s, 1/float64(Numel(t)))
}

func strides(shape []int) []int {
	st := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = stride
		stride *= shape[i]
	}
	return st
}

// Permute reorders the axes of t: out axis i is input axis perm[i].
func Permute(t *Tensor, perm []int) (*Tensor, error) {
	rank := len(t.shape)
	if len(perm) != rank {
		return nil, fmt.Errorf("permute: perm %v does not match rank %d", perm, rank)
	}
	seen := make([]bool, rank)
	newShape := make([]int, rank)
	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return nil, fmt.Errorf("permute: invalid permutation %v", perm)
		}
		seen[p] = true
		newShape[i] = t.shape[p]
	}

	inStrides := strides(t.shape)
	outData := make([]float64, len(t.data))
	idx := make([]int, rank)
	for o := range outData {
		// decode o into the output multi-index, then map back to the input offset
		rem := o
		for i := rank - 1; i >= 0; i-- {
			idx[i] = rem % newShape[i]
			rem /= newShape[i]
		}
		src := 0
		for i := 0; i < rank; i++ {
			src += idx[i] * inStrides[perm[i]]
		}
		outData[o] = t.data[src]
	}

	out, err := NewTensor(newShape, outData)
	if err != nil {
		return nil, fmt.Errorf("permute failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		inverse := make([]int, rank)
		for i, p := range perm {
			inverse[p] = i
		}
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "permute"
		out.BackwardFunc = func(grad *Tensor) {
			g, err := Permute(grad, inverse)
			if err != nil {
				return
			}
			t.Backward(g)
		}
	}
	return out, nil
}

// AddTensorBroadcast adds a per-channel bias [C] to a tensor [N, C, ...].
func AddTensorBroadcast(t *Tensor, bias *Tensor) (*Tensor, error) {
	if len(t.shape) < 2 || len(bias.shape) != 1 || bias.shape[0] != t.shape[1] {
		return nil, fmt.Errorf("cannot broadcast bias %v over tensor %v", bias.shape, t.shape)
	}
	batch, channels := t.shape[0], t.shape[1]
	inner := len(t.data) / (batch * channels)

	outData := make([]float64, len(t.data))
	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			base := (n*channels + c) * inner
			for k := 0; k < inner; k++ {
				outData[base+k] = t.data[base+k] + bias.data[c]
			}
		}
	}

	out, err := NewTensor(t.shape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad || bias.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t, bias}
		out.Operation = "add_broadcast"
		out.BackwardFunc = func(grad *Tensor) {
			if t.RequiresGrad {
				g, _ := NewTensor(t.shape, grad.data)
				t.Backward(g)
			}
			if bias.RequiresGrad {
				biasGrad := make([]float64, channels)
				for n := 0; n < batch; n++ {
					for c := 0; c < channels; c++ {
						base := (n*channels + c) * inner
						for k := 0; k < inner; k++ {
							biasGrad[c] += grad.data[base+k]
						}
					}
				}
				g, _ := NewTensor(bias.shape, biasGrad)
				bias.Backward(g)
			}
		}
	}
	return out, nil
}

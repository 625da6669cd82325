package tensor

import (
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

// NOTE: most of the functions here are self-explanatory. the autograd part is the only
// tricky one: every op that produces a tensor from inputs requiring grad records its
// parents and a BackwardFunc that pushes the incoming gradient to them.

// Tensor is a dense float64 n-d array with an optional gradient.
type Tensor struct {
	shape        []int
	data         []float64
	Grad         *Tensor
	RequiresGrad bool
	Parents      []*Tensor
	Operation    string
	BackwardFunc func(*Tensor)

	pass *backwardPass
}

// utility function to check if two tensors have the same shape
func IsSameSize(a, b *Tensor) bool {
	return sameShape(a.shape, b.shape)
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// builds a new tensor with the given shape and data. an empty data slice allocates zeros.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	total := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("shape %v contains non-positive dimension", shape)
		}
		total *= dim
	}
	if len(data) > 0 && total != len(data) {
		return nil, fmt.Errorf("shape %v implies %d elements but data has length %d", shape, total, len(data))
	}
	if len(data) == 0 {
		data = make([]float64, total)
	}

	return &Tensor{
		shape: append([]int{}, shape...),
		data:  append([]float64{}, data...),
	}, nil
}

// clones a tensor's shape, data and RequiresGrad flag. the clone has no graph history.
func CloneTensor(t *Tensor) *Tensor {
	clonedData := make([]float64, len(t.data))
	copy(clonedData, t.data)

	return &Tensor{
		data:         clonedData,
		shape:        append([]int{}, t.shape...),
		RequiresGrad: t.RequiresGrad,
	}
}

// adds two tensors element-wise
func AddTensor(t1 *Tensor, t2 *Tensor) (*Tensor, error) {
	if !IsSameSize(t1, t2) {
		return nil, fmt.Errorf("tensors of shape %v and %v have different sizes for addition", t1.shape, t2.shape)
	}

	outData := make([]float64, len(t1.data))
	for i := range t1.data {
		outData[i] = t1.data[i] + t2.data[i]
	}

	out, err := NewTensor(t1.shape, outData)
	if err != nil {
		return nil, err
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "add"

		out.BackwardFunc = func(grad *Tensor) {
			if t1.RequiresGrad {
				g, _ := NewTensor(t1.shape, grad.data)
				t1.Backward(g)
			}
			if t2.RequiresGrad {
				g, _ := NewTensor(t2.shape, grad.data)
				t2.Backward(g)
			}
		}
	}
	return out, nil
}

// multiplies two tensors element-wise
func MulTensor(t1 *Tensor, t2 *Tensor) (*Tensor, error) {
	if !IsSameSize(t1, t2) {
		return nil, fmt.Errorf("tensors of shape %v and %v have different sizes for multiplication", t1.shape, t2.shape)
	}

	outData := make([]float64, len(t1.data))
	for i := range t1.data {
		outData[i] = t1.data[i] * t2.data[i]
	}

	out, err := NewTensor(t1.shape, outData)
	if err != nil {
		return nil, err
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "mul"

		out.BackwardFunc = func(grad *Tensor) {
			if t1.RequiresGrad {
				gradDataForT1 := make([]float64, len(grad.data))
				for i := range gradDataForT1 {
					gradDataForT1[i] = grad.data[i] * t2.data[i]
				}
				g, _ := NewTensor(t1.shape, gradDataForT1)
				t1.Backward(g)
			}
			if t2.RequiresGrad {
				gradDataForT2 := make([]float64, len(grad.data))
				for i := range gradDataForT2 {
					gradDataForT2[i] = grad.data[i] * t1.data[i]
				}
				g, _ := NewTensor(t2.shape, gradDataForT2)
				t2.Backward(g)
			}
		}
	}
	return out, nil
}

// returns the number of elements in a tensor
func Numel(t *Tensor) int {
	if t == nil {
		return 0
	}
	n := 1
	for _, s := range t.shape {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

// reshapes the given tensor to the given shape
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	reshapedNumel := 1
	for _, dim := range newShape {
		if dim <= 0 {
			return nil, fmt.Errorf("newShape %v contains non-positive dimension", newShape)
		}
		reshapedNumel *= dim
	}
	if Numel(t) != reshapedNumel {
		return nil, fmt.Errorf("cannot reshape tensor with %d elements to shape %v (requires %d elements)", Numel(t), newShape, reshapedNumel)
	}

	out, err := NewTensor(newShape, t.data)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "reshape"
		out.BackwardFunc = func(grad *Tensor) {
			g, _ := NewTensor(t.shape, grad.data)
			t.Backward(g)
		}
	}
	return out, nil
}

// GetData and GetShape expose the backing slices. callers must not resize them.
func (t *Tensor) GetData() []float64 {
	return t.data
}

func (t *Tensor) GetShape() []int {
	return t.shape
}

// returns a tensor with all elements set to 1
func OnesLike(t *Tensor) (*Tensor, error) {
	return FullLike(t, 1)
}

// sets the gradient of a tensor to zero
func (t *Tensor) ZeroGrad() {
	if t.Grad != nil {
		for i := range t.Grad.data {
			t.Grad.data[i] = 0
		}
	} else if t.RequiresGrad {
		gradTensor, err := NewTensor(t.shape, nil)
		if err == nil {
			t.Grad = gradTensor
		}
	}
}

// Backward accumulates grad into t.Grad and pushes it to the parents.
// a nil grad is only allowed for one-element tensors and means d(t)/d(t) = 1.
// the graph below t is walked once in reverse topological order, so a tensor
// shared by several consumers runs its BackwardFunc once with the summed gradient.
func (t *Tensor) Backward(grad *Tensor) {
	if !t.RequiresGrad {
		return
	}

	if grad == nil {
		if Numel(t) != 1 {
			klog.Warningf("tensor: Backward called with nil grad on non-scalar tensor %v", t.shape)
			return
		}
		grad = &Tensor{shape: append([]int{}, t.shape...), data: []float64{1.0}}
	} else if !IsSameSize(t, grad) {
		klog.Warningf("tensor: shape mismatch during backward (op=%q): tensor %v, grad %v", t.Operation, t.shape, grad.shape)
		return
	}

	// called from a BackwardFunc inside a running pass: just collect
	if t.pass != nil {
		t.pass.add(t, grad)
		return
	}
	runBackward(t, grad)
}

func (t *Tensor) accumulateGrad(grad *Tensor) {
	if t.Grad == nil {
		t.Grad = &Tensor{shape: append([]int{}, t.shape...), data: append([]float64{}, grad.data...)}
		return
	}
	for i := range t.Grad.data {
		t.Grad.data[i] += grad.data[i]
	}
}

// transposes a 2D tensor [M, N] -> [N, M]. image tensors use TransposeSpatial instead.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.shape) != 2 {
		return nil, fmt.Errorf("transpose only supports 2D tensors, got %v", t.shape)
	}
	M, N := t.shape[0], t.shape[1]

	outData := make([]float64, M*N)
	for r := 0; r < M; r++ {
		for c := 0; c < N; c++ {
			outData[c*M+r] = t.data[r*N+c]
		}
	}

	out, err := NewTensor([]int{N, M}, outData)
	if err != nil {
		return nil, fmt.Errorf("transpose failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "transpose"
		out.BackwardFunc = func(grad *Tensor) {
			transposedGrad, err := Transpose(grad)
			if err != nil {
				klog.Warningf("tensor: failed to transpose gradient in Transpose backward: %v", err)
				return
			}
			t.Backward(transposedGrad)
		}
	}

	return out, nil
}

// MatMulTensor multiplies [M, K] @ [K, N] -> [M, N].
func MatMulTensor(t1 *Tensor, t2 *Tensor) (*Tensor, error) {
	shape1, shape2 := t1.shape, t2.shape
	if len(shape1) != 2 || len(shape2) != 2 {
		return nil, fmt.Errorf("matmul only supports 2D tensors ([M, K] @ [K, N]), got %v and %v", shape1, shape2)
	}
	M, K := shape1[0], shape1[1]
	if K != shape2[0] {
		return nil, fmt.Errorf("matmul incompatible shapes: inner dimensions mismatch %v and %v (%d != %d)", shape1, shape2, K, shape2[0])
	}
	N := shape2[1]

	outShape := []int{M, N}
	outData := make([]float64, M*N)

	// i-k-j loop order keeps the inner loop on contiguous memory of both operands
	for i := 0; i < M; i++ {
		row := outData[i*N : (i+1)*N]
		for k := 0; k < K; k++ {
			a := t1.data[i*K+k]
			if a == 0 {
				continue
			}
			bRow := t2.data[k*N : (k+1)*N]
			for j := range row {
				row[j] += a * bRow[j]
			}
		}
	}

	out, err := NewTensor(outShape, outData)
	if err != nil {
		return nil, fmt.Errorf("matmul failed to create output tensor: %w", err)
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "matmul"

		// dL/dX = dL/dO @ W.T and dL/dW = X.T @ dL/dO
		out.BackwardFunc = func(grad *Tensor) {
			if t1.RequiresGrad {
				t2T, err := Transpose(&Tensor{shape: t2.shape, data: t2.data})
				if err != nil {
					klog.Warningf("tensor: failed to transpose t2 in MatMul backward: %v", err)
				} else if g, err := MatMulTensor(grad, t2T); err != nil {
					klog.Warningf("tensor: failed to compute grad for t1 in MatMul backward: %v", err)
				} else {
					t1.Backward(g)
				}
			}
			if t2.RequiresGrad {
				t1T, err := Transpose(&Tensor{shape: t1.shape, data: t1.data})
				if err != nil {
					klog.Warningf("tensor: failed to transpose t1 in MatMul backward: %v", err)
				} else if g, err := MatMulTensor(t1T, grad); err != nil {
					klog.Warningf("tensor: failed to compute grad for t2 in MatMul backward: %v", err)
				} else {
					// shared weights accumulate through Backward
					t2.Backward(g)
				}
			}
		}
	}

	return out, nil
}

// String renders the tensor for debugging.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil tensor>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor(shape=%v, data=%v, requires_grad=%v", t.shape, t.data, t.RequiresGrad)
	if t.Grad != nil {
		fmt.Fprintf(&b, ", grad_data=%v", t.Grad.data)
	}
	if t.Operation != "" {
		fmt.Fprintf(&b, ", op=%s", t.Operation)
	}
	b.WriteString(")")
	return b.String()
}

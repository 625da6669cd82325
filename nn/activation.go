package nn

import (
	"fmt"
	"math"

	"go-attentiongan/tensor"
	"k8s.io/klog/v2"
)

// unary applies f element-wise and wires dy/dx = df(x, y) into the graph.
func unary(t *tensor.Tensor, op string, f func(x float64) float64, df func(x, y float64) float64) (*tensor.Tensor, error) {
	tData := t.GetData()
	outData := make([]float64, len(tData))
	for i, v := range tData {
		outData[i] = f(v)
	}

	r, err := tensor.NewTensor(t.GetShape(), outData)
	if err != nil {
		return nil, fmt.Errorf("%s failed to create output tensor: %w", op, err)
	}

	if t.RequiresGrad {
		r.RequiresGrad = true
		r.Parents = []*tensor.Tensor{t}
		r.Operation = op

		// dL/dx_i = dL/dy_i * dy_i/dx_i
		r.BackwardFunc = func(grad *tensor.Tensor) {
			gradData := grad.GetData()
			gradDataForT := make([]float64, len(gradData))
			for i := range gradDataForT {
				gradDataForT[i] = gradData[i] * df(tData[i], outData[i])
			}
			gradTensorForT, err := tensor.NewTensor(t.GetShape(), gradDataForT)
			if err != nil {
				klog.Warningf("nn: failed to create gradient tensor for %s backward: %v", op, err)
				return
			}
			t.Backward(gradTensorForT)
		}
	}
	return r, nil
}

// you definitely know RELU if you're reading this: out = max(0, t)
func RELU(t *tensor.Tensor) (*tensor.Tensor, error) {
	return unary(t, "relu",
		func(x float64) float64 { return math.Max(0, x) },
		func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

// leaky relu: out = t if t > 0 else slope * t. the discriminators use slope 0.2.
func LeakyRELU(t *tensor.Tensor, slope float64) (*tensor.Tensor, error) {
	return unary(t, "leaky_relu",
		func(x float64) float64 {
			if x > 0 {
				return x
			}
			return slope * x
		},
		func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return slope
		})
}

// element wise sigmoid : out = 1 / (1 + exp(-t)), dy/dx = y * (1 - y)
func Sigmoid(t *tensor.Tensor) (*tensor.Tensor, error) {
	return unary(t, "sigmoid",
		func(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) },
		func(_, y float64) float64 { return y * (1 - y) })
}

// element wise hyperbolic tangent : out = tanh(t), dy/dx = 1 - y^2
func Tanh(t *tensor.Tensor) (*tensor.Tensor, error) {
	return unary(t, "tanh",
		math.Tanh,
		func(_, y float64) float64 { return 1 - y*y })
}

// SoftmaxChannels applies softmax across the channel axis of [N, C, H, W]
// independently at every spatial location.
//
// backward: for y = softmax(x), dL/dx_j = y_j * (dL/dy_j - sum_i dL/dy_i * y_i)
func SoftmaxChannels(t *tensor.Tensor) (*tensor.Tensor, error) {
	n, c, h, w, err := tensor.Dims4(t)
	if err != nil {
		return nil, fmt.Errorf("softmax: %w", err)
	}
	plane := h * w
	tData := t.GetData()
	outData := make([]float64, len(tData))

	for b := 0; b < n; b++ {
		base := b * c * plane
		for k := 0; k < plane; k++ {
			// max for numerical stability (log-sum-exp trick)
			maxv := math.Inf(-1)
			for ch := 0; ch < c; ch++ {
				maxv = math.Max(maxv, tData[base+ch*plane+k])
			}
			sum := 0.0
			for ch := 0; ch < c; ch++ {
				e := math.Exp(tData[base+ch*plane+k] - maxv)
				outData[base+ch*plane+k] = e
				sum += e
			}
			for ch := 0; ch < c; ch++ {
				outData[base+ch*plane+k] /= sum
			}
		}
	}

	r, err := tensor.NewTensor(t.GetShape(), outData)
	if err != nil {
		return nil, fmt.Errorf("softmax failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		r.RequiresGrad = true
		r.Parents = []*tensor.Tensor{t}
		r.Operation = "softmax_channels"

		r.BackwardFunc = func(grad *tensor.Tensor) {
			gradData := grad.GetData()
			gradDataForT := make([]float64, len(gradData))
			for b := 0; b < n; b++ {
				base := b * c * plane
				for k := 0; k < plane; k++ {
					dot := 0.0
					for ch := 0; ch < c; ch++ {
						i := base + ch*plane + k
						dot += gradData[i] * outData[i]
					}
					for ch := 0; ch < c; ch++ {
						i := base + ch*plane + k
						gradDataForT[i] = outData[i] * (gradData[i] - dot)
					}
				}
			}
			gradTensorForT, err := tensor.NewTensor(t.GetShape(), gradDataForT)
			if err != nil {
				klog.Warningf("nn: failed to create gradient tensor for softmax backward: %v", err)
				return
			}
			t.Backward(gradTensorForT)
		}
	}
	return r, nil
}

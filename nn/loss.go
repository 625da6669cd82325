package nn

import (
	"fmt"
	"math"

	"go-attentiongan/tensor"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"
)

// all losses here reduce with a mean and return a [1] tensor. the target is treated as
// a constant: gradients only flow into the prediction.

func checkLossInputs(name string, pred, target *tensor.Tensor) error {
	if !tensor.IsSameSize(pred, target) {
		return fmt.Errorf("%s: prediction shape %v does not match target shape %v", name, pred.GetShape(), target.GetShape())
	}
	if tensor.Numel(pred) == 0 {
		return fmt.Errorf("%s: empty prediction", name)
	}
	return nil
}

// lossOutput wraps a scalar loss value and wires gradFn (dL/dpred, already scaled) into the graph.
func lossOutput(name string, value float64, pred *tensor.Tensor, gradFn func() []float64) (*tensor.Tensor, error) {
	lossTensor, err := tensor.NewTensor([]int{1}, []float64{value})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create output tensor: %w", name, err)
	}
	if !pred.RequiresGrad {
		return lossTensor, nil
	}

	lossTensor.RequiresGrad = true
	lossTensor.Parents = []*tensor.Tensor{pred}
	lossTensor.Operation = name
	lossTensor.BackwardFunc = func(grad *tensor.Tensor) {
		g := gradFn()
		floats.Scale(grad.GetData()[0], g)
		gradTensor, err := tensor.NewTensor(pred.GetShape(), g)
		if err != nil {
			klog.Warningf("nn: failed to create gradient tensor for %s backward: %v", name, err)
			return
		}
		pred.Backward(gradTensor)
	}
	return lossTensor, nil
}

// MSELoss computes mean((pred - target)^2).
func MSELoss(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossInputs("mse_loss", pred, target); err != nil {
		return nil, err
	}
	p, t := pred.GetData(), target.GetData()
	n := float64(len(p))
	d := floats.Distance(p, t, 2)

	return lossOutput("mse_loss", d*d/n, pred, func() []float64 {
		// d/dp = 2 (p - t) / n
		g := make([]float64, len(p))
		floats.SubTo(g, p, t)
		floats.Scale(2/n, g)
		return g
	})
}

// L1Loss computes mean(|pred - target|). the subgradient at 0 is 0, like torch.
func L1Loss(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossInputs("l1_loss", pred, target); err != nil {
		return nil, err
	}
	p, t := pred.GetData(), target.GetData()
	n := float64(len(p))

	return lossOutput("l1_loss", floats.Distance(p, t, 1)/n, pred, func() []float64 {
		g := make([]float64, len(p))
		floats.SubTo(g, p, t)
		for i, v := range g {
			switch {
			case v > 0:
				g[i] = 1 / n
			case v < 0:
				g[i] = -1 / n
			default:
				g[i] = 0
			}
		}
		return g
	})
}

// BCEWithLogitsLoss computes mean(max(x,0) - x*t + log(1 + exp(-|x|))), the numerically
// stable form of binary cross-entropy on raw logits.
func BCEWithLogitsLoss(logits, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossInputs("bce_with_logits_loss", logits, target); err != nil {
		return nil, err
	}
	x, t := logits.GetData(), target.GetData()
	n := float64(len(x))

	terms := make([]float64, len(x))
	for i := range x {
		terms[i] = math.Max(x[i], 0) - x[i]*t[i] + math.Log1p(math.Exp(-math.Abs(x[i])))
	}

	return lossOutput("bce_with_logits_loss", floats.Sum(terms)/n, logits, func() []float64 {
		// d/dx = (sigmoid(x) - t) / n
		g := make([]float64, len(x))
		for i := range x {
			g[i] = (1/(1+math.Exp(-x[i])) - t[i]) / n
		}
		return g
	})
}

package autograd

import (
	"errors"
	"fmt"

	"go-attentiongan/tensor"
)

// ErrNonFinite is returned when a loss is NaN or Inf. the backward pass is not run
// so parameters keep the values they had before the failing loss was computed.
var ErrNonFinite = errors.New("autograd: non-finite loss")

// Backward runs the backward pass from a one-element loss.
// gradients accumulate into every reachable tensor with RequiresGrad set.
func Backward(loss *tensor.Tensor) error {
	if loss == nil {
		return fmt.Errorf("autograd: nil loss")
	}
	if tensor.Numel(loss) != 1 {
		return fmt.Errorf("autograd: backward needs a one-element loss, got shape %v", loss.GetShape())
	}
	if !tensor.IsFinite(loss) {
		return fmt.Errorf("%w: %v (op=%q)", ErrNonFinite, loss.Item(), loss.Operation)
	}
	if !loss.RequiresGrad {
		// nothing upstream is trainable, e.g. every contributing network is frozen
		return nil
	}
	loss.Backward(nil)
	return nil
}

// SetRequiresGrad freezes (false) or unfreezes (true) a set of parameters.
// frozen parameters still pass gradients through to their inputs but never accumulate their own.
func SetRequiresGrad(params []*tensor.Tensor, requiresGrad bool) {
	for _, p := range params {
		if p != nil {
			p.RequiresGrad = requiresGrad
		}
	}
}

// HasGradient reports whether any parameter carries a non-zero gradient.
func HasGradient(params []*tensor.Tensor) bool {
	for _, p := range params {
		if p == nil || p.Grad == nil {
			continue
		}
		for _, g := range p.Grad.GetData() {
			if g != 0 {
				return true
			}
		}
	}
	return false
}

// Leaves returns the leaf tensors below root that require grad, parents first,
// i.e. the parameters a backward pass from root would update.
func Leaves(root *tensor.Tensor) []*tensor.Tensor {
	var leaves []*tensor.Tensor
	for _, t := range tensor.TopologicalOrder(root) {
		if len(t.Parents) == 0 {
			leaves = append(leaves, t)
		}
	}
	return leaves
}

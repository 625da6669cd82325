package optimizer

import (
	"fmt"

	"go-attentiongan/tensor"
)

// common method all optimizers must utilize
type Optimizer interface {
	Step() error
	ZeroGrad()
	Parameters() []*tensor.Tensor // return the parameters managed by the optimizer
	LearningRate() float64
	SetLearningRate(lr float64)
}

// SGD : Stochastic Gradient Descent optimizer.
type SGD struct {
	learningRate float64
	parameters   []*tensor.Tensor // tensors whose gradients will be updated
}

// collects the trainable parameters an optimizer should own
func trainable(parameters []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(parameters) == 0 {
		return nil, fmt.Errorf("optimizer: created with empty parameters list")
	}
	validParams := []*tensor.Tensor{}
	for _, p := range parameters {
		if p != nil && p.RequiresGrad {
			validParams = append(validParams, p)
		}
	}
	if len(validParams) == 0 {
		return nil, fmt.Errorf("optimizer: no parameters requiring gradients provided")
	}
	return validParams, nil
}

// checks a parameter's gradient before it is applied. ok is false when the
// parameter did not take part in the loss and has no gradient yet.
func gradFor(p *tensor.Tensor) (grad []float64, ok bool, err error) {
	if p.Grad == nil {
		return nil, false, nil
	}
	if !tensor.IsSameSize(p, p.Grad) {
		return nil, false, fmt.Errorf("optimizer: gradient size mismatch for parameter (op='%s'): grad shape %v, parameter shape %v",
			p.Operation, p.Grad.GetShape(), p.GetShape())
	}
	return p.Grad.GetData(), true, nil
}

// creates a new SGD and recieves list of parameters (tensors with RequiresGrad=true) and a learning rate.
func NewSGD(parameters []*tensor.Tensor, learningRate float64) (*SGD, error) {
	if learningRate <= 0 {
		return nil, fmt.Errorf("optimizer: learning rate must be positive, got %f", learningRate)
	}
	validParams, err := trainable(parameters)
	if err != nil {
		return nil, err
	}
	return &SGD{
		learningRate: learningRate,
		parameters:   validParams,
	}, nil
}

// step updates the parameters based on their gradients using the SGD rule:
// parameter = parameter - learning_rate * gradient
func (s *SGD) Step() error {
	for _, p := range s.parameters {
		gradData, ok, err := gradFor(p)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		paramData := p.GetData()
		for i := range paramData {
			paramData[i] -= s.learningRate * gradData[i]
		}
	}
	return nil
}

// sets all params managed by this to zero
func (s *SGD) ZeroGrad() {
	for _, p := range s.parameters {
		p.ZeroGrad()
	}
}

// returns the slice of params managed by this optimizer
func (s *SGD) Parameters() []*tensor.Tensor {
	return s.parameters
}

func (s *SGD) LearningRate() float64 { return s.learningRate }

func (s *SGD) SetLearningRate(lr float64) { s.learningRate = lr }

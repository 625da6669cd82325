package optimizer

import (
	"fmt"
	"math"

	"go-attentiongan/tensor"
)

// AdamConfig holds configuration for the Adam optimizer
type AdamConfig struct {
	LearningRate float64
	Beta1        float64 // Momentum decay (0.5 for GAN training, 0.9 usually)
	Beta2        float64 // Variance decay (typically 0.999)
	Epsilon      float64 // Small constant to prevent division by zero (typically 1e-8)
	WeightDecay  float64 // L2 regularization coefficient
}

// DefaultAdamConfig returns the configuration used for both GAN optimizers.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.0002,
		Beta1:        0.5,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam keeps first and second moment estimates per parameter element.
type Adam struct {
	config     AdamConfig
	parameters []*tensor.Tensor
	momentum   [][]float64
	variance   [][]float64
	stepCount  int
}

func NewAdam(parameters []*tensor.Tensor, config AdamConfig) (*Adam, error) {
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("optimizer: learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Beta1 < 0 || config.Beta1 >= 1 || config.Beta2 < 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("optimizer: adam betas must be in [0, 1), got (%f, %f)", config.Beta1, config.Beta2)
	}
	if config.Epsilon <= 0 {
		config.Epsilon = 1e-8
	}
	validParams, err := trainable(parameters)
	if err != nil {
		return nil, err
	}

	a := &Adam{
		config:     config,
		parameters: validParams,
		momentum:   make([][]float64, len(validParams)),
		variance:   make([][]float64, len(validParams)),
	}
	for i, p := range validParams {
		a.momentum[i] = make([]float64, tensor.Numel(p))
		a.variance[i] = make([]float64, tensor.Numel(p))
	}
	return a, nil
}

// Step applies one bias-corrected Adam update:
//   m = b1*m + (1-b1)*g ; v = b2*v + (1-b2)*g^2
//   p -= lr * (m / (1-b1^t)) / (sqrt(v / (1-b2^t)) + eps)
func (a *Adam) Step() error {
	// validate every gradient first so a bad one leaves all parameters untouched
	grads := make([][]float64, len(a.parameters))
	for i, p := range a.parameters {
		g, ok, err := gradFor(p)
		if err != nil {
			return err
		}
		if ok {
			grads[i] = g
		}
	}

	a.stepCount++
	c := a.config
	correction1 := 1 - math.Pow(c.Beta1, float64(a.stepCount))
	correction2 := 1 - math.Pow(c.Beta2, float64(a.stepCount))

	for i, p := range a.parameters {
		g := grads[i]
		if g == nil {
			continue
		}
		paramData := p.GetData()
		m, v := a.momentum[i], a.variance[i]
		for j := range paramData {
			grad := g[j] + c.WeightDecay*paramData[j]
			m[j] = c.Beta1*m[j] + (1-c.Beta1)*grad
			v[j] = c.Beta2*v[j] + (1-c.Beta2)*grad*grad
			mHat := m[j] / correction1
			vHat := v[j] / correction2
			paramData[j] -= c.LearningRate * mHat / (math.Sqrt(vHat) + c.Epsilon)
		}
	}
	return nil
}

func (a *Adam) ZeroGrad() {
	for _, p := range a.parameters {
		p.ZeroGrad()
	}
}

func (a *Adam) Parameters() []*tensor.Tensor { return a.parameters }

func (a *Adam) LearningRate() float64 { return a.config.LearningRate }

func (a *Adam) SetLearningRate(lr float64) { a.config.LearningRate = lr }

// StepCount returns how many updates have been applied, used for bias correction.
func (a *Adam) StepCount() int { return a.stepCount }

package losses

import (
	"fmt"

	"go-attentiongan/nn"
	"go-attentiongan/tensor"
)

// GANMode selects the adversarial objective.
type GANMode string

const (
	LSGAN   GANMode = "lsgan"
	Vanilla GANMode = "vanilla"
	WGANGP  GANMode = "wgangp"
)

// GANLoss scores a discriminator prediction map against a real or fake target.
type GANLoss interface {
	Loss(prediction *tensor.Tensor, targetIsReal bool) (*tensor.Tensor, error)
}

// NewGANLoss returns the policy for mode with real label 1 and fake label 0.
func NewGANLoss(mode GANMode) (GANLoss, error) {
	switch mode {
	case LSGAN:
		return &labelLoss{mode: mode, real: 1, fake: 0, criterion: nn.MSELoss}, nil
	case Vanilla:
		return &labelLoss{mode: mode, real: 1, fake: 0, criterion: nn.BCEWithLogitsLoss}, nil
	case WGANGP:
		return wassersteinLoss{}, nil
	default:
		return nil, fmt.Errorf("gan mode %q not implemented", mode)
	}
}

// labelLoss compares the prediction with a constant label map of the same shape.
type labelLoss struct {
	mode      GANMode
	real      float64
	fake      float64
	criterion func(pred, target *tensor.Tensor) (*tensor.Tensor, error)
}

func (l *labelLoss) Loss(prediction *tensor.Tensor, targetIsReal bool) (*tensor.Tensor, error) {
	label := l.fake
	if targetIsReal {
		label = l.real
	}
	target, err := tensor.FullLike(prediction, label)
	if err != nil {
		return nil, fmt.Errorf("%s loss: %w", l.mode, err)
	}
	return l.criterion(prediction, target)
}

// wassersteinLoss is -mean(pred) for real targets and mean(pred) for fake ones.
type wassersteinLoss struct{}

func (wassersteinLoss) Loss(prediction *tensor.Tensor, targetIsReal bool) (*tensor.Tensor, error) {
	mean, err := tensor.Mean(prediction)
	if err != nil {
		return nil, fmt.Errorf("wgangp loss: %w", err)
	}
	if targetIsReal {
		return tensor.ScaleTensor(mean, -1)
	}
	return mean, nil
}

package model

import (
	"errors"
	"fmt"

	"go-attentiongan/losses"
)

var (
	// ErrInvalidConfig marks options that can never produce a working model.
	ErrInvalidConfig = errors.New("invalid model configuration")
	// ErrMissingInput marks a batch without the tensor a configured domain needs.
	ErrMissingInput = errors.New("missing input")
	// ErrNotTraining is returned when a test-mode model is asked to optimise.
	ErrNotTraining = errors.New("model is not in training mode")
)

// Direction selects which batch field is domain A.
type Direction string

const (
	AtoB Direction = "AtoB"
	BtoA Direction = "BtoA"
)

// RotationInputMode selects what the discriminators are fed.
type RotationInputMode string

const (
	// RotationOnly feeds only the rotation batch (the reference behaviour).
	RotationOnly RotationInputMode = "rotated_only"
	// RotationCombined feeds the unrotated batch alongside its rotation batch.
	RotationCombined RotationInputMode = "combined"
)

// Options configure the model.
type Options struct {
	Name    string
	IsTrain bool

	InputNC  int
	OutputNC int

	Direction Direction

	LambdaA        float64 // weight for cycle loss (A -> B -> A)
	LambdaB        float64 // weight for cycle loss (B -> A -> B)
	LambdaIdentity float64 // scales the identity loss relative to the cycle weights; 0 disables it

	PoolSize int
	GANMode  losses.GANMode

	// WeightRotationLossG weighs the generators' rotation loss; discriminators use 5x this.
	WeightRotationLossG float64
	RotationInputMode   RotationInputMode

	SaveDisk bool // expose only the main visuals

	Optimizer    string // "adam" or "sgd"
	LR           float64
	Beta1        float64
	LRPolicy     string // "constant" or "linear"
	EpochCount   int
	NEpochs      int
	NEpochsDecay int
}

// DefaultOptions returns the usual AttentionGAN training setup.
func DefaultOptions() Options {
	return Options{
		Name:                "attentiongan",
		IsTrain:             true,
		InputNC:             3,
		OutputNC:            3,
		Direction:           AtoB,
		LambdaA:             10.0,
		LambdaB:             10.0,
		LambdaIdentity:      0.5,
		PoolSize:            50,
		GANMode:             losses.LSGAN,
		WeightRotationLossG: 1.0,
		RotationInputMode:   RotationOnly,
		Optimizer:           "adam",
		LR:                  0.0002,
		Beta1:               0.5,
		LRPolicy:            "linear",
		EpochCount:          1,
		NEpochs:             100,
		NEpochsDecay:        100,
	}
}

// RotationWeightD is the rotation loss weight used for the discriminators.
func (o Options) RotationWeightD() float64 {
	return 5 * o.WeightRotationLossG
}

// Validate checks the options on their own, without networks.
func (o Options) Validate() error {
	if o.InputNC <= 0 || o.OutputNC <= 0 {
		return fmt.Errorf("%w: channel counts must be positive, got input_nc=%d output_nc=%d", ErrInvalidConfig, o.InputNC, o.OutputNC)
	}
	if o.Direction != AtoB && o.Direction != BtoA {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidConfig, o.Direction)
	}
	if !o.IsTrain {
		return nil
	}
	if o.LambdaIdentity > 0 && o.InputNC != o.OutputNC {
		return fmt.Errorf("%w: identity loss needs input_nc == output_nc, got %d and %d", ErrInvalidConfig, o.InputNC, o.OutputNC)
	}
	if o.LambdaA < 0 || o.LambdaB < 0 || o.LambdaIdentity < 0 || o.WeightRotationLossG < 0 {
		return fmt.Errorf("%w: loss weights must be non-negative", ErrInvalidConfig)
	}
	if o.PoolSize < 0 {
		return fmt.Errorf("%w: pool_size must be non-negative, got %d", ErrInvalidConfig, o.PoolSize)
	}
	if _, err := losses.NewGANLoss(o.GANMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if o.RotationInputMode != RotationOnly && o.RotationInputMode != RotationCombined {
		return fmt.Errorf("%w: unknown rotation input mode %q", ErrInvalidConfig, o.RotationInputMode)
	}
	if o.Optimizer != "adam" && o.Optimizer != "sgd" {
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, o.Optimizer)
	}
	if o.LR <= 0 {
		return fmt.Errorf("%w: lr must be positive, got %g", ErrInvalidConfig, o.LR)
	}
	return nil
}

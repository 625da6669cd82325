// Package losses composes the generator and discriminator objectives of a
// cycle-consistent GAN with a rotation-prediction auxiliary task.
package losses

import (
	"fmt"

	"go-attentiongan/nn"
	"go-attentiongan/rotation"
	"go-attentiongan/tensor"
)

// CycleLoss is weight * L1(reconstructed, original).
func CycleLoss(reconstructed, original *tensor.Tensor, weight float64) (*tensor.Tensor, error) {
	l1, err := nn.L1Loss(reconstructed, original)
	if err != nil {
		return nil, fmt.Errorf("cycle loss: %w", err)
	}
	return tensor.ScaleTensor(l1, weight)
}

// IdentityLoss is weight * L1(mapped, target). Callers skip it altogether,
// generator pass included, when the identity weight is zero.
func IdentityLoss(mapped, target *tensor.Tensor, weight float64) (*tensor.Tensor, error) {
	l1, err := nn.L1Loss(mapped, target)
	if err != nil {
		return nil, fmt.Errorf("identity loss: %w", err)
	}
	return tensor.ScaleTensor(l1, weight)
}

// RotationClassificationLoss is the mean squared error between a rotation class map
// [4n, 4, ...] and the one-hot rotation labels of a batch of n images.
func RotationClassificationLoss(n int, prediction *tensor.Tensor) (*tensor.Tensor, error) {
	if prediction == nil {
		return nil, fmt.Errorf("rotation loss: discriminator returned no rotation prediction")
	}
	targets, err := rotation.OneHotTargets(n, prediction.GetShape())
	if err != nil {
		return nil, fmt.Errorf("rotation loss: %w", err)
	}
	return nn.MSELoss(prediction, targets)
}

// CombineDiscriminatorLoss returns 0.5*(realLoss+fakeLoss) + weight*rot and the weighted
// rotation component on its own.
func CombineDiscriminatorLoss(realLoss, fakeLoss, rot *tensor.Tensor, weight float64) (total, rotComponent *tensor.Tensor, err error) {
	adversarial, err := tensor.AddTensor(realLoss, fakeLoss)
	if err != nil {
		return nil, nil, fmt.Errorf("discriminator loss: %w", err)
	}
	if adversarial, err = tensor.ScaleTensor(adversarial, 0.5); err != nil {
		return nil, nil, fmt.Errorf("discriminator loss: %w", err)
	}
	if rotComponent, err = tensor.ScaleTensor(rot, weight); err != nil {
		return nil, nil, fmt.Errorf("discriminator loss: %w", err)
	}
	if total, err = tensor.AddTensor(adversarial, rotComponent); err != nil {
		return nil, nil, fmt.Errorf("discriminator loss: %w", err)
	}
	return total, rotComponent, nil
}

// GeneratorTerms groups the per-direction generator losses. Identity is empty when
// identity loss is disabled.
type GeneratorTerms struct {
	Adversarial []*tensor.Tensor
	Cycle       []*tensor.Tensor
	Identity    []*tensor.Tensor
	Rotation    []*tensor.Tensor
}

// CombineGeneratorLoss sums adversarial, cycle and identity terms unweighted, in that
// order, then adds weight*r for every rotation term.
func CombineGeneratorLoss(terms GeneratorTerms, weight float64) (*tensor.Tensor, error) {
	var total *tensor.Tensor
	add := func(t *tensor.Tensor) error {
		if t == nil {
			return fmt.Errorf("generator loss: nil term")
		}
		if total == nil {
			total = t
			return nil
		}
		sum, err := tensor.AddTensor(total, t)
		if err != nil {
			return fmt.Errorf("generator loss: %w", err)
		}
		total = sum
		return nil
	}

	for _, group := range [][]*tensor.Tensor{terms.Adversarial, terms.Cycle, terms.Identity} {
		for _, t := range group {
			if err := add(t); err != nil {
				return nil, err
			}
		}
	}
	for _, r := range terms.Rotation {
		if r == nil {
			return nil, fmt.Errorf("generator loss: nil rotation term")
		}
		weighted, err := tensor.ScaleTensor(r, weight)
		if err != nil {
			return nil, fmt.Errorf("generator loss: %w", err)
		}
		if err := add(weighted); err != nil {
			return nil, err
		}
	}
	if total == nil {
		return nil, fmt.Errorf("generator loss: no terms")
	}
	return total, nil
}

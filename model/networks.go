package model

import (
	"fmt"

	"go-attentiongan/tensor"
)

const (
	// NumAttentionMaps is the number of attended outputs (and of masks) a generator returns.
	NumAttentionMaps = 10
	// NumIntermediates is the number of intermediate content images a generator returns.
	NumIntermediates = 9
)

// GeneratorOutput is everything one generator pass produces.
type GeneratorOutput struct {
	Translated    *tensor.Tensor
	AttentionMaps []*tensor.Tensor // NumAttentionMaps entries
	Masks         []*tensor.Tensor // NumAttentionMaps entries
	Intermediates []*tensor.Tensor // NumIntermediates entries
}

// Validate checks the fixed arity of the output.
func (o *GeneratorOutput) Validate() error {
	switch {
	case o == nil || o.Translated == nil:
		return fmt.Errorf("generator returned no translated image")
	case len(o.AttentionMaps) != NumAttentionMaps:
		return fmt.Errorf("generator returned %d attention maps, want %d", len(o.AttentionMaps), NumAttentionMaps)
	case len(o.Masks) != NumAttentionMaps:
		return fmt.Errorf("generator returned %d masks, want %d", len(o.Masks), NumAttentionMaps)
	case len(o.Intermediates) != NumIntermediates:
		return fmt.Errorf("generator returned %d intermediate outputs, want %d", len(o.Intermediates), NumIntermediates)
	}
	return nil
}

// DiscriminatorOutput is what a discriminator pass produces. Only Prediction and
// Rotation take part in the losses.
type DiscriminatorOutput struct {
	Features   *tensor.Tensor
	Prediction *tensor.Tensor // real/fake map
	Rotation   *tensor.Tensor // rotation class map [rows, 4, h, w]
	Extra      *tensor.Tensor
}

// Generator maps images of one domain to the other.
type Generator interface {
	Forward(images *tensor.Tensor) (*GeneratorOutput, error)
	Parameters() []*tensor.Tensor
}

// Discriminator classifies images as real or fake and predicts their rotation.
type Discriminator interface {
	Forward(images *tensor.Tensor) (*DiscriminatorOutput, error)
	Parameters() []*tensor.Tensor
}

// PairDiscriminator is a discriminator that can also look at an unrotated batch and
// its rotation batch together. It is required by RotationCombined.
type PairDiscriminator interface {
	Discriminator
	ForwardPair(images, rotated *tensor.Tensor) (*DiscriminatorOutput, error)
}

// Networks are the four collaborators of the model. D_A judges domain B images
// (outputs of G_A) and D_B judges domain A images. Discriminators may be nil in test mode.
type Networks struct {
	GA Generator
	GB Generator
	DA Discriminator
	DB Discriminator
}

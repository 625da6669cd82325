package networks

import (
	"fmt"
	"math/rand"

	"go-attentiongan/model"
	"go-attentiongan/nn"
	"go-attentiongan/rotation"
	"go-attentiongan/tensor"
)

// PatchDiscriminator is a strided conv trunk with two heads: a one-channel real/fake
// map and a rotation class map with a softmax over its NumClasses channels.
type PatchDiscriminator struct {
	name     string
	trunk    *nn.Sequential
	real     *nn.Conv2D
	rotation *nn.Conv2D
	softmax  nn.Layer
}

// NewPatchDiscriminator builds a discriminator with nLayers stride-2 convolutions,
// doubling the width from ndf up to 8*ndf.
func NewPatchDiscriminator(name string, inNC, ndf, nLayers int, rng *rand.Rand) (*PatchDiscriminator, error) {
	if inNC <= 0 || ndf <= 0 || nLayers <= 0 {
		return nil, fmt.Errorf("patch discriminator needs positive input_nc, ndf and n_layers, got %d, %d, %d", inNC, ndf, nLayers)
	}

	trunk := nn.NewSequential(name + ".trunk")
	in, out := inNC, ndf
	for i := 0; i < nLayers; i++ {
		conv, err := nn.NewConv2DWithRand(in, out, 4, 2, 1, rng)
		if err != nil {
			return nil, err
		}
		trunk.Add(conv)
		trunk.Add(nn.NewLeakyRELU(0.2))
		in = out
		if out < 8*ndf {
			out *= 2
		}
	}

	realHead, err := nn.NewConv2DWithRand(in, 1, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	rotationHead, err := nn.NewConv2DWithRand(in, rotation.NumClasses, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	return &PatchDiscriminator{
		name:     name,
		trunk:    trunk,
		real:     realHead,
		rotation: rotationHead,
		softmax:  nn.NewSoftmaxChannels(),
	}, nil
}

type heads struct {
	features, prediction, logits, rotation *tensor.Tensor
}

func (d *PatchDiscriminator) run(images *tensor.Tensor, withRotation bool) (heads, error) {
	var h heads
	var err error
	if h.features, err = d.trunk.Forward(images); err != nil {
		return h, err
	}
	if h.prediction, err = d.real.Forward(h.features); err != nil {
		return h, fmt.Errorf("%s real head: %w", d.name, err)
	}
	if !withRotation {
		return h, nil
	}
	if h.logits, err = d.rotation.Forward(h.features); err != nil {
		return h, fmt.Errorf("%s rotation head: %w", d.name, err)
	}
	if h.rotation, err = d.softmax.Forward(h.logits); err != nil {
		return h, fmt.Errorf("%s rotation head: %w", d.name, err)
	}
	return h, nil
}

// Forward scores a batch. Extra carries the rotation logits before the softmax.
func (d *PatchDiscriminator) Forward(images *tensor.Tensor) (*model.DiscriminatorOutput, error) {
	h, err := d.run(images, true)
	if err != nil {
		return nil, err
	}
	return &model.DiscriminatorOutput{Features: h.features, Prediction: h.prediction, Rotation: h.rotation, Extra: h.logits}, nil
}

// ForwardPair scores images and their rotation batch together: Prediction holds the
// rows of images followed by the rows of rotated, Rotation comes from rotated only.
func (d *PatchDiscriminator) ForwardPair(images, rotated *tensor.Tensor) (*model.DiscriminatorOutput, error) {
	plain, err := d.run(images, false)
	if err != nil {
		return nil, err
	}
	rot, err := d.run(rotated, true)
	if err != nil {
		return nil, err
	}
	prediction, err := tensor.Concat(plain.prediction, rot.prediction)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}
	return &model.DiscriminatorOutput{Features: rot.features, Prediction: prediction, Rotation: rot.rotation, Extra: plain.features}, nil
}

func (d *PatchDiscriminator) Parameters() []*tensor.Tensor {
	params := d.trunk.Parameters()
	params = append(params, d.real.Parameters()...)
	return append(params, d.rotation.Parameters()...)
}

func (d *PatchDiscriminator) ZeroGrad() {
	d.trunk.ZeroGrad()
	d.real.ZeroGrad()
	d.rotation.ZeroGrad()
}

func (d *PatchDiscriminator) Name() string { return d.name }

// Layers lists the trunk layers followed by the real/fake head, the rotation head and its softmax.
func (d *PatchDiscriminator) Layers() []nn.Layer {
	return append(append([]nn.Layer{}, d.trunk.Layers()...), d.real, d.rotation, d.softmax)
}

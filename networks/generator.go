// Package networks holds small reference networks that satisfy the model's
// generator and discriminator contracts.
package networks

import (
	"fmt"
	"math/rand"

	"go-attentiongan/model"
	"go-attentiongan/nn"
	"go-attentiongan/tensor"
)

// AttentionGenerator produces NumIntermediates content images and NumAttentionMaps
// attention masks from a shared trunk. The last mask attends to the input itself, so
// the translation is sum_k content_k * mask_k with content_10 = input.
type AttentionGenerator struct {
	name      string
	outNC     int
	trunk     *nn.Sequential
	content   *nn.Sequential
	attention *nn.Sequential
}

// NewAttentionGenerator builds a generator for inNC-channel images. The input is
// reused as the background content, so inNC must equal outNC.
func NewAttentionGenerator(name string, inNC, outNC, ngf int, rng *rand.Rand) (*AttentionGenerator, error) {
	if inNC != outNC {
		return nil, fmt.Errorf("attention generator needs input_nc == output_nc, got %d and %d", inNC, outNC)
	}
	if ngf <= 0 {
		return nil, fmt.Errorf("attention generator needs ngf > 0, got %d", ngf)
	}

	conv1, err := nn.NewConv2DWithRand(inNC, ngf, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	conv2, err := nn.NewConv2DWithRand(ngf, ngf, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	contentConv, err := nn.NewConv2DWithRand(ngf, model.NumIntermediates*outNC, 3, 1, 1, rng)
	if err != nil {
		return nil, err
	}
	attentionConv, err := nn.NewConv2DWithRand(ngf, model.NumAttentionMaps, 1, 1, 0, rng)
	if err != nil {
		return nil, err
	}

	return &AttentionGenerator{
		name:      name,
		outNC:     outNC,
		trunk:     nn.NewSequential(name+".trunk", conv1, nn.NewRELU(), conv2, nn.NewRELU()),
		content:   nn.NewSequential(name+".content", contentConv, nn.NewTanh()),
		attention: nn.NewSequential(name+".attention", attentionConv, nn.NewSoftmaxChannels()),
	}, nil
}

// Forward translates images [N, C, H, W].
func (g *AttentionGenerator) Forward(images *tensor.Tensor) (*model.GeneratorOutput, error) {
	features, err := g.trunk.Forward(images)
	if err != nil {
		return nil, err
	}
	content, err := g.content.Forward(features)
	if err != nil {
		return nil, err
	}
	attention, err := g.attention.Forward(features)
	if err != nil {
		return nil, err
	}

	out := &model.GeneratorOutput{
		AttentionMaps: make([]*tensor.Tensor, model.NumAttentionMaps),
		Masks:         make([]*tensor.Tensor, model.NumAttentionMaps),
		Intermediates: make([]*tensor.Tensor, model.NumIntermediates),
	}
	for k := 0; k < model.NumAttentionMaps; k++ {
		if out.Masks[k], err = tensor.SliceChannels(attention, k, k+1); err != nil {
			return nil, fmt.Errorf("%s mask %d: %w", g.name, k+1, err)
		}
		source := images
		if k < model.NumIntermediates {
			if out.Intermediates[k], err = tensor.SliceChannels(content, k*g.outNC, (k+1)*g.outNC); err != nil {
				return nil, fmt.Errorf("%s content %d: %w", g.name, k+1, err)
			}
			source = out.Intermediates[k]
		}
		if out.AttentionMaps[k], err = tensor.MulChannelBroadcast(source, out.Masks[k]); err != nil {
			return nil, fmt.Errorf("%s attention %d: %w", g.name, k+1, err)
		}

		if k == 0 {
			out.Translated = out.AttentionMaps[k]
		} else if out.Translated, err = tensor.AddTensor(out.Translated, out.AttentionMaps[k]); err != nil {
			return nil, fmt.Errorf("%s sum: %w", g.name, err)
		}
	}
	return out, nil
}

func (g *AttentionGenerator) Parameters() []*tensor.Tensor {
	params := g.trunk.Parameters()
	params = append(params, g.content.Parameters()...)
	return append(params, g.attention.Parameters()...)
}

func (g *AttentionGenerator) ZeroGrad() {
	g.trunk.ZeroGrad()
	g.content.ZeroGrad()
	g.attention.ZeroGrad()
}

func (g *AttentionGenerator) Name() string { return g.name }

// Layers lists the trunk, content head and attention head layers in that order.
func (g *AttentionGenerator) Layers() []nn.Layer {
	layers := append([]nn.Layer{}, g.trunk.Layers()...)
	layers = append(layers, g.content.Layers()...)
	return append(layers, g.attention.Layers()...)
}

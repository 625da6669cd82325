package model

import (
	"go-attentiongan/tensor"
)

// scaleGenerator translates by multiplying with a single weight. Its auxiliary
// outputs all alias the translated image.
type scaleGenerator struct {
	w     *tensor.Tensor
	calls int
}

func newScaleGenerator(w float64) *scaleGenerator {
	return &scaleGenerator{w: tensor.Scalar(w)}
}

func (g *scaleGenerator) Forward(images *tensor.Tensor) (*GeneratorOutput, error) {
	g.calls++
	out, err := tensor.ScaleBy(images, g.w)
	if err != nil {
		return nil, err
	}
	fill := func(n int) []*tensor.Tensor {
		ts := make([]*tensor.Tensor, n)
		for i := range ts {
			ts[i] = out
		}
		return ts
	}
	return &GeneratorOutput{
		Translated:    out,
		AttentionMaps: fill(NumAttentionMaps),
		Masks:         fill(NumAttentionMaps),
		Intermediates: fill(NumIntermediates),
	}, nil
}

func (g *scaleGenerator) Parameters() []*tensor.Tensor { return []*tensor.Tensor{g.w} }

// scaleDiscriminator predicts a*images[:, :1] as its real/fake map and
// b*mean(images) at every class as its rotation map [rows, 4, 1, 1].
type scaleDiscriminator struct {
	a, b      *tensor.Tensor
	calls     int
	pairCalls int
}

func newScaleDiscriminator(a, b float64) *scaleDiscriminator {
	return &scaleDiscriminator{a: tensor.Scalar(a), b: tensor.Scalar(b)}
}

func (d *scaleDiscriminator) Forward(images *tensor.Tensor) (*DiscriminatorOutput, error) {
	d.calls++
	first, err := tensor.SliceChannels(images, 0, 1)
	if err != nil {
		return nil, err
	}
	prediction, err := tensor.ScaleBy(first, d.a)
	if err != nil {
		return nil, err
	}
	mean, err := tensor.Mean(images)
	if err != nil {
		return nil, err
	}
	spread, err := tensor.Expand(mean, []int{images.GetShape()[0], 4, 1, 1})
	if err != nil {
		return nil, err
	}
	rotation, err := tensor.ScaleBy(spread, d.b)
	if err != nil {
		return nil, err
	}
	return &DiscriminatorOutput{Features: first, Prediction: prediction, Rotation: rotation}, nil
}

func (d *scaleDiscriminator) ForwardPair(images, rotated *tensor.Tensor) (*DiscriminatorOutput, error) {
	d.pairCalls++
	plain, err := d.Forward(images)
	if err != nil {
		return nil, err
	}
	rot, err := d.Forward(rotated)
	if err != nil {
		return nil, err
	}
	prediction, err := tensor.Concat(plain.Prediction, rot.Prediction)
	if err != nil {
		return nil, err
	}
	return &DiscriminatorOutput{Features: rot.Features, Prediction: prediction, Rotation: rot.Rotation, Extra: plain.Features}, nil
}

func (d *scaleDiscriminator) Parameters() []*tensor.Tensor { return []*tensor.Tensor{d.a, d.b} }

// forwardOnly hides ForwardPair.
type forwardOnly struct{ d *scaleDiscriminator }

func (f forwardOnly) Forward(images *tensor.Tensor) (*DiscriminatorOutput, error) {
	return f.d.Forward(images)
}

func (f forwardOnly) Parameters() []*tensor.Tensor { return f.d.Parameters() }

type mockNetworks struct {
	ga, gb *scaleGenerator
	da, db *scaleDiscriminator
}

func newMockNetworks() *mockNetworks {
	return &mockNetworks{
		ga: newScaleGenerator(-0.5),
		gb: newScaleGenerator(-0.5),
		da: newScaleDiscriminator(0.5, 0.25),
		db: newScaleDiscriminator(0.5, 0.25),
	}
}

func (m *mockNetworks) networks() Networks {
	return Networks{GA: m.ga, GB: m.gb, DA: m.da, DB: m.db}
}

func (m *mockNetworks) generatorParams() []*tensor.Tensor {
	return append(m.ga.Parameters(), m.gb.Parameters()...)
}

func (m *mockNetworks) discriminatorParams() []*tensor.Tensor {
	return append(m.da.Parameters(), m.db.Parameters()...)
}

package nn

import (
	"fmt"

	"go-attentiongan/tensor"
)

// Sequential is a container for layers arranged in a sequential order.
// it is itself a Layer, so blocks can nest.
type Sequential struct {
	name   string
	layers []Layer
}

func NewSequential(name string, layers ...Layer) *Sequential {
	return &Sequential{
		name:   name,
		layers: append(make([]Layer, 0, len(layers)), layers...),
	}
}

// Add adds a new layer to the sequential model.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

// Forward performs the forward pass for the entire sequence of layers.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for i, layer := range s.layers {
		x, err = layer.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("%s layer %d (%s): %w", s.name, i, layer.Name(), err)
		}
	}
	return x, nil
}

// Parameters returns a slice of all parameters from all layers in the model.
func (s *Sequential) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{}
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// ZeroGrad calls ZeroGrad on all layers in the model.
func (s *Sequential) ZeroGrad() {
	for _, layer := range s.layers {
		layer.ZeroGrad()
	}
}

func (s *Sequential) Layers() []Layer {
	return s.layers
}

func (s *Sequential) Name() string {
	return s.name
}

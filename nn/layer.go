package nn

import "go-attentiongan/tensor"

// Layer defines the interface that all neural network layers must implement.
type Layer interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	ZeroGrad()
	Name() string
}

// --- Activation Layers ---

type RELUActivation struct{}
func (r *RELUActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return RELU(input) }
func (r *RELUActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (r *RELUActivation) ZeroGrad() {}
func (r *RELUActivation) Name() string { return "ReLU" }

func NewRELU() *RELUActivation {
	return &RELUActivation{}
}

type LeakyRELUActivation struct{ Slope float64 }
func (r *LeakyRELUActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return LeakyRELU(input, r.Slope) }
func (r *LeakyRELUActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (r *LeakyRELUActivation) ZeroGrad() {}
func (r *LeakyRELUActivation) Name() string { return "LeakyReLU" }

func NewLeakyRELU(slope float64) *LeakyRELUActivation {
	return &LeakyRELUActivation{Slope: slope}
}

type TanhActivation struct{}
func (a *TanhActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return Tanh(input) }
func (a *TanhActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (a *TanhActivation) ZeroGrad() {}
func (a *TanhActivation) Name() string { return "Tanh" }

func NewTanh() *TanhActivation {
	return &TanhActivation{}
}

type SoftmaxChannelsActivation struct{}
func (a *SoftmaxChannelsActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return SoftmaxChannels(input) }
func (a *SoftmaxChannelsActivation) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (a *SoftmaxChannelsActivation) ZeroGrad() {}
func (a *SoftmaxChannelsActivation) Name() string { return "Softmax2d" }

func NewSoftmaxChannels() *SoftmaxChannelsActivation {
	return &SoftmaxChannelsActivation{}
}

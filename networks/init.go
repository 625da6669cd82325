package networks

import (
	"fmt"
	"math/rand"

	"k8s.io/klog/v2"

	"go-attentiongan/model"
	"go-attentiongan/tensor"
)

// InitWeights re-initialises conv kernels (rank 4 parameters) with a zero-centred
// "normal" (std gain) or "uniform" (in [-gain, gain]) draw and zeroes every bias.
func InitWeights(params []*tensor.Tensor, kind string, gain float64, rng *rand.Rand) error {
	var draw func() float64
	switch kind {
	case "normal":
		draw = func() float64 { return rng.NormFloat64() * gain }
	case "uniform":
		draw = func() float64 { return (2*rng.Float64() - 1) * gain }
	default:
		return fmt.Errorf("initialization method [%s] is not implemented", kind)
	}

	for _, p := range params {
		data := p.GetData()
		if len(p.GetShape()) != 4 {
			for i := range data {
				data[i] = 0
			}
			continue
		}
		for i := range data {
			data[i] = draw()
		}
	}
	return nil
}

// Config describes the reference networks.
type Config struct {
	InputNC  int
	OutputNC int
	NGF      int // generator width
	NDF      int // discriminator width
	NLayersD int
	InitType string
	InitGain float64
}

// DefaultConfig returns a small setup that trains on CPU in reasonable time.
func DefaultConfig() Config {
	return Config{InputNC: 3, OutputNC: 3, NGF: 8, NDF: 8, NLayersD: 2, InitType: "normal", InitGain: 0.02}
}

// Build creates G_A (input_nc -> output_nc), G_B (output_nc -> input_nc) and, when
// training, D_A over output_nc images and D_B over input_nc images.
func Build(cfg Config, isTrain bool, rng *rand.Rand) (model.Networks, error) {
	var nets model.Networks
	ga, err := NewAttentionGenerator("G_A", cfg.InputNC, cfg.OutputNC, cfg.NGF, rng)
	if err != nil {
		return nets, err
	}
	gb, err := NewAttentionGenerator("G_B", cfg.OutputNC, cfg.InputNC, cfg.NGF, rng)
	if err != nil {
		return nets, err
	}
	nets.GA, nets.GB = ga, gb
	toInit := [][]*tensor.Tensor{ga.Parameters(), gb.Parameters()}

	if isTrain {
		da, err := NewPatchDiscriminator("D_A", cfg.OutputNC, cfg.NDF, cfg.NLayersD, rng)
		if err != nil {
			return nets, err
		}
		db, err := NewPatchDiscriminator("D_B", cfg.InputNC, cfg.NDF, cfg.NLayersD, rng)
		if err != nil {
			return nets, err
		}
		nets.DA, nets.DB = da, db
		toInit = append(toInit, da.Parameters(), db.Parameters())
	}

	for _, params := range toInit {
		if err := InitWeights(params, cfg.InitType, cfg.InitGain, rng); err != nil {
			return nets, err
		}
	}
	klog.Infof("initialize networks with %s (gain %g)", cfg.InitType, cfg.InitGain)
	return nets, nil
}

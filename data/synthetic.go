package data

import (
	"fmt"
	"math"
	"math/rand"

	"go-attentiongan/model"
	"go-attentiongan/tensor"
)

// Synthetic makes a batch of two toy domains: domain A holds smooth horizontal
// gradients, domain B holds checkerboards, both with a little noise. Values are in [-1, 1].
func Synthetic(batchSize, channels, size int, rng *rand.Rand) (model.Batch, error) {
	var batch model.Batch
	if batchSize <= 0 || channels <= 0 || size <= 0 {
		return batch, fmt.Errorf("data: synthetic batch needs positive dimensions, got %d x %d x %d", batchSize, channels, size)
	}
	plane := size * size
	dataA := make([]float64, batchSize*channels*plane)
	dataB := make([]float64, batchSize*channels*plane)

	for n := 0; n < batchSize; n++ {
		phase := rng.Float64() * 2 * math.Pi
		cell := 1 + rng.Intn(max(1, size/2))
		for c := 0; c < channels; c++ {
			base := (n*channels + c) * plane
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					noise := 0.05 * rng.NormFloat64()
					dataA[base+y*size+x] = clamp(math.Sin(phase+float64(x)/float64(size)*math.Pi) + noise)
					v := -0.8
					if (x/cell+y/cell)%2 == 0 {
						v = 0.8
					}
					dataB[base+y*size+x] = clamp(v + noise)
				}
			}
		}
		batch.APaths = append(batch.APaths, fmt.Sprintf("synthetic/A/%d", n))
		batch.BPaths = append(batch.BPaths, fmt.Sprintf("synthetic/B/%d", n))
	}

	var err error
	shape := []int{batchSize, channels, size, size}
	if batch.A, err = tensor.NewTensor(shape, dataA); err != nil {
		return batch, err
	}
	if batch.B, err = tensor.NewTensor(shape, dataB); err != nil {
		return batch, err
	}
	return batch, nil
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

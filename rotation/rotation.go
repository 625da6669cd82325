// Package rotation builds the self-supervised rotation batch and its labels.
package rotation

import (
	"fmt"

	"go-attentiongan/tensor"
)

// NumClasses is the number of rotation classes: 0, 90, 180 and 270 degrees.
const NumClasses = 4

// Rotate turns [N, C, H, W] into [4N, C, W, H]: the input, its spatial transpose,
// its 180 degree flip and the transpose followed by the flip, stacked in that order.
// Label i in Labels(N) belongs to row i. H must equal W.
func Rotate(images *tensor.Tensor) (*tensor.Tensor, error) {
	if _, _, h, w, err := tensor.Dims4(images); err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	} else if h != w {
		return nil, fmt.Errorf("rotation: images must be square, got %dx%d", h, w)
	}

	rot90, err := tensor.TransposeSpatial(images)
	if err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	}
	rot180, err := tensor.FlipSpatial(images)
	if err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	}
	rot270, err := tensor.FlipSpatial(rot90)
	if err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	}
	return tensor.Concat(images, rot90, rot180, rot270)
}

// Labels returns the class of every row of a rotation batch built from n images:
// rows [0,n) are 0, [n,2n) are 1, [2n,3n) are 2 and [3n,4n) are 3.
func Labels(n int) []int {
	labels := make([]int, NumClasses*n)
	for i := range labels {
		labels[i] = i / n
	}
	return labels
}

// OneHotTargets expands Labels(n) to a constant target shaped like a classifier map
// [4n, NumClasses, ...]: every spatial location of row i holds the one-hot of its label.
func OneHotTargets(n int, shape []int) (*tensor.Tensor, error) {
	if n <= 0 {
		return nil, fmt.Errorf("rotation: batch size must be positive, got %d", n)
	}
	if len(shape) < 2 || shape[0] != NumClasses*n || shape[1] != NumClasses {
		return nil, fmt.Errorf("rotation: prediction shape %v is not [%d, %d, ...]", shape, NumClasses*n, NumClasses)
	}
	targets, err := tensor.NewTensor(shape, nil)
	if err != nil {
		return nil, fmt.Errorf("rotation: %w", err)
	}

	inner := 1
	for _, d := range shape[2:] {
		inner *= d
	}
	data := targets.GetData()
	for row, label := range Labels(n) {
		base := (row*NumClasses + label) * inner
		for k := 0; k < inner; k++ {
			data[base+k] = 1
		}
	}
	return targets, nil
}

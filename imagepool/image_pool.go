// Package imagepool buffers previously generated images so discriminators are
// trained against a history of generator outputs rather than only the latest ones.
package imagepool

import (
	"fmt"

	"go-attentiongan/tensor"
)

// Source is the randomness the pool draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// ImagePool is a fixed-capacity buffer of single images [1, C, H, W].
// It is not safe for concurrent use.
type ImagePool struct {
	size   int
	images []*tensor.Tensor
	src    Source
}

// New creates a pool holding up to size images. size 0 disables buffering.
func New(size int, src Source) (*ImagePool, error) {
	if size < 0 {
		return nil, fmt.Errorf("imagepool: size must be non-negative, got %d", size)
	}
	if size > 0 && src == nil {
		return nil, fmt.Errorf("imagepool: a random source is required when size > 0")
	}
	return &ImagePool{size: size, src: src, images: make([]*tensor.Tensor, 0, size)}, nil
}

// Query returns a batch shaped like images. While the pool is filling every image is
// stored and returned as is; once full, each image has a 50% chance to be swapped
// for a random stored one, which then takes its place in the pool.
func (p *ImagePool) Query(images *tensor.Tensor) (*tensor.Tensor, error) {
	if p.size == 0 {
		return images, nil
	}
	shape := images.GetShape()
	if len(shape) == 0 {
		return nil, fmt.Errorf("imagepool: cannot query a scalar tensor")
	}

	returned := make([]*tensor.Tensor, 0, shape[0])
	for i := 0; i < shape[0]; i++ {
		image, err := tensor.SliceBatch(images, i, i+1)
		if err != nil {
			return nil, fmt.Errorf("imagepool: %w", err)
		}
		image = tensor.Detach(image)

		if len(p.images) < p.size {
			p.images = append(p.images, image)
			returned = append(returned, image)
			continue
		}
		if p.src.Float64() > 0.5 {
			id := p.src.Intn(p.size)
			previous := p.images[id]
			p.images[id] = image
			returned = append(returned, previous)
		} else {
			returned = append(returned, image)
		}
	}

	out, err := tensor.Concat(returned...)
	if err != nil {
		return nil, fmt.Errorf("imagepool: %w", err)
	}
	return out, nil
}

// Len is the number of images currently buffered.
func (p *ImagePool) Len() int { return len(p.images) }

// Size is the configured capacity.
func (p *ImagePool) Size() int { return p.size }

// Images returns the buffered images in slot order.
func (p *ImagePool) Images() []*tensor.Tensor {
	return append([]*tensor.Tensor(nil), p.images...)
}

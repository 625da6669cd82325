package tensor

import "fmt"

// Dims4 unpacks an image batch shape [N, C, H, W].
func Dims4(t *Tensor) (n, c, h, w int, err error) {
	if len(t.shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("expected a 4D [N, C, H, W] tensor, got %v", t.shape)
	}
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3], nil
}

// TransposeSpatial swaps the two spatial axes: [N, C, H, W] -> [N, C, W, H].
func TransposeSpatial(t *Tensor) (*Tensor, error) {
	n, c, h, w, err := Dims4(t)
	if err != nil {
		return nil, fmt.Errorf("transpose_spatial: %w", err)
	}

	outData := make([]float64, len(t.data))
	for p := 0; p < n*c; p++ {
		plane := p * h * w
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				outData[plane+x*h+y] = t.data[plane+y*w+x]
			}
		}
	}

	out, err := NewTensor([]int{n, c, w, h}, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "transpose_spatial"
		out.BackwardFunc = func(grad *Tensor) {
			g, err := TransposeSpatial(grad)
			if err != nil {
				return
			}
			t.Backward(g)
		}
	}
	return out, nil
}

// FlipSpatial reverses both spatial axes, i.e. a 180 degree rotation of every plane.
func FlipSpatial(t *Tensor) (*Tensor, error) {
	n, c, h, w, err := Dims4(t)
	if err != nil {
		return nil, fmt.Errorf("flip_spatial: %w", err)
	}

	outData := make([]float64, len(t.data))
	for p := 0; p < n*c; p++ {
		plane := p * h * w
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				outData[plane+y*w+x] = t.data[plane+(h-1-y)*w+(w-1-x)]
			}
		}
	}

	out, err := NewTensor(t.shape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "flip_spatial"
		out.BackwardFunc = func(grad *Tensor) {
			g, err := FlipSpatial(grad)
			if err != nil {
				return
			}
			t.Backward(g)
		}
	}
	return out, nil
}

// Concat stacks tensors along the batch (first) axis. all trailing axes must match.
func Concat(parts ...*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("concat needs at least one tensor")
	}
	for i, p := range parts {
		if p == nil || len(p.shape) == 0 {
			return nil, fmt.Errorf("concat: tensor %d has no batch axis", i)
		}
	}
	trailing := parts[0].shape[1:]
	rows := 0
	requiresGrad := false
	for i, p := range parts {
		if !sameShape(p.shape[1:], trailing) {
			return nil, fmt.Errorf("concat: tensor %d has shape %v, incompatible with %v", i, p.shape, parts[0].shape)
		}
		rows += p.shape[0]
		requiresGrad = requiresGrad || p.RequiresGrad
	}

	outShape := append([]int{rows}, trailing...)
	outData := make([]float64, 0, rows*(len(parts[0].data)/parts[0].shape[0]))
	for _, p := range parts {
		outData = append(outData, p.data...)
	}

	out, err := NewTensor(outShape, outData)
	if err != nil {
		return nil, err
	}

	if requiresGrad {
		out.RequiresGrad = true
		out.Parents = append([]*Tensor{}, parts...)
		out.Operation = "concat"
		out.BackwardFunc = func(grad *Tensor) {
			offset := 0
			for _, p := range parts {
				size := len(p.data)
				if p.RequiresGrad {
					g, _ := NewTensor(p.shape, grad.data[offset:offset+size])
					p.Backward(g)
				}
				offset += size
			}
		}
	}
	return out, nil
}

// SliceBatch returns rows [start, end) of the first axis.
func SliceBatch(t *Tensor, start, end int) (*Tensor, error) {
	if len(t.shape) == 0 || start < 0 || end > t.shape[0] || start >= end {
		return nil, fmt.Errorf("slice_batch: range [%d, %d) out of bounds for shape %v", start, end, t.shape)
	}
	rowSize := len(t.data) / t.shape[0]
	outShape := append([]int{end - start}, t.shape[1:]...)

	out, err := NewTensor(outShape, t.data[start*rowSize:end*rowSize])
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "slice_batch"
		out.BackwardFunc = func(grad *Tensor) {
			full := make([]float64, len(t.data))
			copy(full[start*rowSize:end*rowSize], grad.data)
			g, _ := NewTensor(t.shape, full)
			t.Backward(g)
		}
	}
	return out, nil
}

// SliceChannels returns channels [start, end) of an image batch.
func SliceChannels(t *Tensor, start, end int) (*Tensor, error) {
	n, c, h, w, err := Dims4(t)
	if err != nil {
		return nil, fmt.Errorf("slice_channels: %w", err)
	}
	if start < 0 || end > c || start >= end {
		return nil, fmt.Errorf("slice_channels: range [%d, %d) out of bounds for %d channels", start, end, c)
	}
	plane := h * w
	width := end - start

	outData := make([]float64, n*width*plane)
	for b := 0; b < n; b++ {
		src := (b*c + start) * plane
		copy(outData[b*width*plane:(b+1)*width*plane], t.data[src:src+width*plane])
	}

	out, err := NewTensor([]int{n, width, h, w}, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "slice_channels"
		out.BackwardFunc = func(grad *Tensor) {
			full := make([]float64, len(t.data))
			for b := 0; b < n; b++ {
				dst := (b*c + start) * plane
				copy(full[dst:dst+width*plane], grad.data[b*width*plane:(b+1)*width*plane])
			}
			g, _ := NewTensor(t.shape, full)
			t.Backward(g)
		}
	}
	return out, nil
}

// MulChannelBroadcast multiplies an image batch [N, C, H, W] by a single-channel mask [N, 1, H, W].
func MulChannelBroadcast(img *Tensor, mask *Tensor) (*Tensor, error) {
	n, c, h, w, err := Dims4(img)
	if err != nil {
		return nil, fmt.Errorf("mul_channel_broadcast: %w", err)
	}
	if !sameShape(mask.shape, []int{n, 1, h, w}) {
		return nil, fmt.Errorf("mul_channel_broadcast: mask shape %v does not match image %v", mask.shape, img.shape)
	}
	plane := h * w

	outData := make([]float64, len(img.data))
	for b := 0; b < n; b++ {
		m := mask.data[b*plane : (b+1)*plane]
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * plane
			for k := 0; k < plane; k++ {
				outData[base+k] = img.data[base+k] * m[k]
			}
		}
	}

	out, err := NewTensor(img.shape, outData)
	if err != nil {
		return nil, err
	}

	if img.RequiresGrad || mask.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{img, mask}
		out.Operation = "mul_channel_broadcast"
		out.BackwardFunc = func(grad *Tensor) {
			if img.RequiresGrad {
				gi := make([]float64, len(img.data))
				for b := 0; b < n; b++ {
					m := mask.data[b*plane : (b+1)*plane]
					for ch := 0; ch < c; ch++ {
						base := (b*c + ch) * plane
						for k := 0; k < plane; k++ {
							gi[base+k] = grad.data[base+k] * m[k]
						}
					}
				}
				g, _ := NewTensor(img.shape, gi)
				img.Backward(g)
			}
			if mask.RequiresGrad {
				gm := make([]float64, len(mask.data))
				for b := 0; b < n; b++ {
					for ch := 0; ch < c; ch++ {
						base := (b*c + ch) * plane
						for k := 0; k < plane; k++ {
							gm[b*plane+k] += grad.data[base+k] * img.data[base+k]
						}
					}
				}
				g, _ := NewTensor(mask.shape, gm)
				mask.Backward(g)
			}
		}
	}
	return out, nil
}

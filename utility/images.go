package utility

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"go-attentiongan/tensor"
)

// TensorToImage converts the first image of a [N, C, H, W] batch with values in
// [-1, 1] to an RGBA image. One-channel tensors (e.g. attention masks) are drawn in
// gray; masks in [0, 1] come out dark-to-mid gray, which is fine for inspection.
func TensorToImage(t *tensor.Tensor) (*image.RGBA, error) {
	_, c, h, w, err := tensor.Dims4(t)
	if err != nil {
		return nil, err
	}
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("cannot draw a %d-channel image", c)
	}
	data := t.GetData()
	plane := h * w
	toByte := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, (v+1)/2)) * 255))
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := y*w + x
			r := toByte(data[k])
			g, b := r, r
			if c == 3 {
				g = toByte(data[plane+k])
				b = toByte(data[2*plane+k])
			}
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return img, nil
}

// SaveImage writes the first image of t to path as PNG.
func SaveImage(path string, t *tensor.Tensor) error {
	img, err := TensorToImage(t)
	if err != nil {
		return fmt.Errorf("save image %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("save image %s: %w", path, err)
	}
	return f.Close()
}

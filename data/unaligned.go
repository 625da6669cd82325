// Package data loads unpaired two-domain image folders into model batches.
package data

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-attentiongan/model"
	"go-attentiongan/tensor"
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// UnalignedDataset reads <root>/<phase>A and <root>/<phase>B. The two folders are not
// paired: item i takes A image i and either B image i (serial) or a random B image.
type UnalignedDataset struct {
	pathsA, pathsB []string
	size           int
	serial         bool
	rng            *rand.Rand

	// InputNC and OutputNC are the channel counts of domain A and B images (1 or 3).
	InputNC  int
	OutputNC int
}

// NewUnalignedDataset lists both domain folders. Images are resized to size x size.
func NewUnalignedDataset(root, phase string, size int, serialBatches bool, rng *rand.Rand) (*UnalignedDataset, error) {
	if size <= 0 {
		return nil, fmt.Errorf("data: image size must be positive, got %d", size)
	}
	if !serialBatches && rng == nil {
		return nil, fmt.Errorf("data: a random source is required unless batches are serial")
	}
	pathsA, err := listImages(filepath.Join(root, phase+"A"))
	if err != nil {
		return nil, err
	}
	pathsB, err := listImages(filepath.Join(root, phase+"B"))
	if err != nil {
		return nil, err
	}
	return &UnalignedDataset{
		pathsA: pathsA, pathsB: pathsB,
		size: size, serial: serialBatches, rng: rng,
		InputNC: 3, OutputNC: 3,
	}, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("data: no images found in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// Len is the larger of the two domain sizes.
func (d *UnalignedDataset) Len() int {
	return max(len(d.pathsA), len(d.pathsB))
}

// Batch returns items [i*batchSize, (i+1)*batchSize), wrapping around the end of
// each domain.
func (d *UnalignedDataset) Batch(i, batchSize int) (model.Batch, error) {
	var batch model.Batch
	if batchSize <= 0 {
		return batch, fmt.Errorf("data: batch size must be positive, got %d", batchSize)
	}

	plane := d.size * d.size
	dataA := make([]float64, 0, batchSize*d.InputNC*plane)
	dataB := make([]float64, 0, batchSize*d.OutputNC*plane)
	for j := 0; j < batchSize; j++ {
		index := i*batchSize + j
		pathA := d.pathsA[index%len(d.pathsA)]
		var pathB string
		if d.serial {
			pathB = d.pathsB[index%len(d.pathsB)]
		} else {
			// randomise B to avoid fixed pairs
			pathB = d.pathsB[d.rng.Intn(len(d.pathsB))]
		}

		pixels, err := loadImage(pathA, d.size, d.InputNC)
		if err != nil {
			return batch, err
		}
		dataA = append(dataA, pixels...)
		if pixels, err = loadImage(pathB, d.size, d.OutputNC); err != nil {
			return batch, err
		}
		dataB = append(dataB, pixels...)
		batch.APaths = append(batch.APaths, pathA)
		batch.BPaths = append(batch.BPaths, pathB)
	}

	var err error
	if batch.A, err = tensor.NewTensor([]int{batchSize, d.InputNC, d.size, d.size}, dataA); err != nil {
		return batch, fmt.Errorf("data: %w", err)
	}
	if batch.B, err = tensor.NewTensor([]int{batchSize, d.OutputNC, d.size, d.size}, dataB); err != nil {
		return batch, fmt.Errorf("data: %w", err)
	}
	return batch, nil
}

// loadImage decodes path, resizes it with nearest-neighbour sampling and returns
// channels x size x size values in [-1, 1].
func loadImage(path string, size, channels int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("data: decoding %s: %w", path, err)
	}
	return ImageToPixels(img, size, channels)
}

// ImageToPixels samples img onto a size x size grid in channel-major order, scaled to [-1, 1].
// One channel means grayscale.
func ImageToPixels(img image.Image, size, channels int) ([]float64, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("data: only 1 or 3 channels are supported, got %d", channels)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("data: empty image")
	}

	plane := size * size
	out := make([]float64, channels*plane)
	for y := 0; y < size; y++ {
		sy := bounds.Min.Y + y*h/size
		for x := 0; x < size; x++ {
			sx := bounds.Min.X + x*w/size
			r, g, b, _ := img.At(sx, sy).RGBA()
			k := y*size + x
			if channels == 1 {
				gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 0xffff
				out[k] = gray*2 - 1
				continue
			}
			out[k] = float64(r)/0xffff*2 - 1
			out[plane+k] = float64(g)/0xffff*2 - 1
			out[2*plane+k] = float64(b)/0xffff*2 - 1
		}
	}
	return out, nil
}

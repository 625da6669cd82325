package data

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func datasetRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "trainA", "b.png"), color.RGBA{255, 0, 0, 255})
	writePNG(t, filepath.Join(root, "trainA", "a.png"), color.RGBA{0, 255, 0, 255})
	writePNG(t, filepath.Join(root, "trainB", "x.png"), color.RGBA{0, 0, 255, 255})
	if err := os.WriteFile(filepath.Join(root, "trainB", "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return root
}

func TestUnalignedDataset(t *testing.T) {
	d, err := NewUnalignedDataset(datasetRoot(t), "train", 2, true, nil)
	if err != nil {
		t.Fatalf("NewUnalignedDataset failed: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("expected length 2, got %d", d.Len())
	}

	batch, err := d.Batch(0, 3)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if s := batch.A.GetShape(); s[0] != 3 || s[1] != 3 || s[2] != 2 || s[3] != 2 {
		t.Fatalf("expected A shape [3 3 2 2], got %v", s)
	}
	// sorted: a.png (green), b.png (red), then wrap to a.png
	wantA := []string{"a.png", "b.png", "a.png"}
	for i, p := range batch.APaths {
		if filepath.Base(p) != wantA[i] {
			t.Errorf("A path %d: expected %s, got %s", i, wantA[i], filepath.Base(p))
		}
	}
	for i, p := range batch.BPaths {
		if filepath.Base(p) != "x.png" {
			t.Errorf("B path %d: expected x.png, got %s", i, p)
		}
	}

	// image 1 is red: channel 0 at 1, the others at -1
	a := batch.A.GetData()
	for k := 0; k < 4; k++ {
		if a[12+k] != 1 || a[12+4+k] != -1 || a[12+8+k] != -1 {
			t.Fatalf("red image decoded as %v", a[12:24])
		}
	}
	for _, v := range batch.B.GetData()[8:12] {
		if v != 1 {
			t.Fatalf("blue channel of B should be 1, got %v", v)
		}
	}
}

func TestUnalignedDatasetRandomB(t *testing.T) {
	d, err := NewUnalignedDataset(datasetRoot(t), "train", 2, false, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewUnalignedDataset failed: %v", err)
	}
	batch, err := d.Batch(1, 2)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(batch.BPaths) != 2 {
		t.Errorf("expected 2 B paths, got %v", batch.BPaths)
	}
}

func TestUnalignedDatasetErrors(t *testing.T) {
	root := datasetRoot(t)
	if _, err := NewUnalignedDataset(root, "test", 2, true, nil); err == nil {
		t.Error("expected an error for a missing phase folder")
	}
	if _, err := NewUnalignedDataset(root, "train", 2, false, nil); err == nil {
		t.Error("expected an error for random batches without a source")
	}
	if _, err := NewUnalignedDataset(root, "train", 0, true, nil); err == nil {
		t.Error("expected an error for a zero image size")
	}
	d, _ := NewUnalignedDataset(root, "train", 2, true, nil)
	if _, err := d.Batch(0, 0); err == nil {
		t.Error("expected an error for a zero batch size")
	}
}

func TestImageToPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(0)
			if x >= 2 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}

	gray, err := ImageToPixels(img, 2, 1)
	if err != nil {
		t.Fatalf("ImageToPixels failed: %v", err)
	}
	// nearest sampling keeps the black left half and the white right half
	want := []float64{-1, 1, -1, 1}
	for i := range want {
		if math.Abs(gray[i]-want[i]) > 1e-9 {
			t.Fatalf("pixel %d: expected %v, got %v", i, want[i], gray[i])
		}
	}

	if _, err := ImageToPixels(img, 2, 4); err == nil {
		t.Error("expected an error for 4 channels")
	}
}

func TestSynthetic(t *testing.T) {
	batch, err := Synthetic(3, 2, 6, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}
	for name, x := range map[string][]float64{"A": batch.A.GetData(), "B": batch.B.GetData()} {
		if len(x) != 3*2*6*6 {
			t.Fatalf("%s has %d values", name, len(x))
		}
		for _, v := range x {
			if v < -1 || v > 1 {
				t.Fatalf("%s value %v outside [-1, 1]", name, v)
			}
		}
	}
	if len(batch.APaths) != 3 || len(batch.BPaths) != 3 {
		t.Errorf("expected 3 paths per domain, got %d and %d", len(batch.APaths), len(batch.BPaths))
	}
	if _, err := Synthetic(0, 3, 8, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected an error for an empty batch")
	}
}

package rotation

import (
	"testing"

	"go-attentiongan/tensor"
)

func TestRotate(t *testing.T) {
	// two 1-channel 2x2 images: [1 2 / 3 4] and [5 6 / 7 8]
	images, _ := tensor.NewTensor([]int{2, 1, 2, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	out, err := Rotate(images)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if s := out.GetShape(); s[0] != 8 || s[1] != 1 || s[2] != 2 || s[3] != 2 {
		t.Fatalf("expected [8 1 2 2], got %v", s)
	}

	want := []float64{
		1, 2, 3, 4, 5, 6, 7, 8, // identity
		1, 3, 2, 4, 5, 7, 6, 8, // transpose
		4, 3, 2, 1, 8, 7, 6, 5, // flip
		4, 2, 3, 1, 8, 6, 7, 5, // flip of the transpose
	}
	got := out.GetData()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: expected %v, got %v (all %v)", i, want[i], got[i], got)
		}
	}
}

func TestRotateKeepsGradient(t *testing.T) {
	images, _ := tensor.NewTensor([]int{1, 1, 2, 2}, []float64{1, 2, 3, 4})
	images.RequiresGrad = true
	out, _ := Rotate(images)
	loss, _ := tensor.Sum(out)
	loss.Backward(nil)
	for i, g := range images.Grad.GetData() {
		if g != 4 {
			t.Errorf("pixel %d: every pixel appears once per rotation, expected grad 4, got %v", i, g)
		}
	}
}

func TestRotateRejectsNonSquare(t *testing.T) {
	images, _ := tensor.NewTensor([]int{1, 1, 2, 3}, nil)
	if _, err := Rotate(images); err == nil {
		t.Error("expected an error for non-square images")
	}
}

func TestLabels(t *testing.T) {
	want := []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3}
	got := Labels(3)
	if len(got) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("label %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestOneHotTargets(t *testing.T) {
	targets, err := OneHotTargets(1, []int{4, NumClasses, 1, 2})
	if err != nil {
		t.Fatalf("OneHotTargets failed: %v", err)
	}
	data := targets.GetData()
	for row := 0; row < 4; row++ {
		for class := 0; class < NumClasses; class++ {
			want := 0.0
			if class == row {
				want = 1
			}
			for k := 0; k < 2; k++ {
				if got := data[(row*NumClasses+class)*2+k]; got != want {
					t.Fatalf("row %d class %d location %d: expected %v, got %v", row, class, k, want, got)
				}
			}
		}
	}

	if _, err := OneHotTargets(2, []int{4, NumClasses}); err == nil {
		t.Error("expected an error when the row count is not 4n")
	}
	if _, err := OneHotTargets(1, []int{4, 3}); err == nil {
		t.Error("expected an error for the wrong class count")
	}
}

func TestHalfTurnBlockRotatesBack(t *testing.T) {
	values := make([]float64, 2*3*4*4)
	for i := range values {
		values[i] = float64(i*7%13) - 6
	}
	images, _ := tensor.NewTensor([]int{2, 3, 4, 4}, values)
	out, err := Rotate(images)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	first, _ := tensor.SliceBatch(out, 0, 2)
	halfTurn, _ := tensor.SliceBatch(out, 4, 6)
	back, _ := tensor.FlipSpatial(halfTurn)
	for i, v := range values {
		if first.GetData()[i] != v {
			t.Fatalf("identity block differs at %d", i)
		}
		if back.GetData()[i] != v {
			t.Fatalf("rotating the 180 degree block back differs at %d", i)
		}
	}
}

package optimizer

import (
	"math"
	"testing"

	"go-attentiongan/tensor"
)

func paramWithGrad(t *testing.T, values, grad []float64) *tensor.Tensor {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(values)}, values)
	if err != nil {
		t.Fatalf("failed to create parameter: %v", err)
	}
	p.RequiresGrad = true
	if grad != nil {
		p.Grad, _ = tensor.NewTensor([]int{len(grad)}, grad)
	}
	return p
}

func TestSGD(t *testing.T) {
	t.Run("basic update", func(t *testing.T) {
		p := paramWithGrad(t, []float64{1, 2, 3}, []float64{0.1, 0.2, 0.3})
		opt, err := NewSGD([]*tensor.Tensor{p}, 0.1)
		if err != nil {
			t.Fatalf("NewSGD failed: %v", err)
		}
		if err := opt.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		for i, want := range []float64{0.99, 1.98, 2.97} {
			if math.Abs(p.GetData()[i]-want) > 1e-12 {
				t.Errorf("parameter %d: expected %v, got %v", i, want, p.GetData()[i])
			}
		}
	})

	t.Run("parameters without gradient are skipped", func(t *testing.T) {
		p := paramWithGrad(t, []float64{1}, nil)
		opt, _ := NewSGD([]*tensor.Tensor{p}, 0.1)
		if err := opt.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if p.GetData()[0] != 1 {
			t.Errorf("parameter changed without a gradient: %v", p.GetData())
		}
	})

	t.Run("frozen parameters are not owned", func(t *testing.T) {
		frozen := paramWithGrad(t, []float64{1}, []float64{1})
		frozen.RequiresGrad = false
		trained := paramWithGrad(t, []float64{1}, []float64{1})
		opt, err := NewSGD([]*tensor.Tensor{frozen, trained}, 0.5)
		if err != nil {
			t.Fatalf("NewSGD failed: %v", err)
		}
		if len(opt.Parameters()) != 1 {
			t.Fatalf("expected 1 owned parameter, got %d", len(opt.Parameters()))
		}
		opt.Step()
		if frozen.GetData()[0] != 1 || trained.GetData()[0] != 0.5 {
			t.Errorf("unexpected values frozen=%v trained=%v", frozen.GetData(), trained.GetData())
		}
	})

	t.Run("invalid construction", func(t *testing.T) {
		if _, err := NewSGD(nil, 0.1); err == nil {
			t.Error("expected an error for no parameters")
		}
		p := paramWithGrad(t, []float64{1}, nil)
		if _, err := NewSGD([]*tensor.Tensor{p}, 0); err == nil {
			t.Error("expected an error for a zero learning rate")
		}
	})
}

func TestAdam(t *testing.T) {
	t.Run("first step moves by lr", func(t *testing.T) {
		// with bias correction the first update is lr * g / (|g| + eps) = lr * sign(g)
		p := paramWithGrad(t, []float64{1, 1}, []float64{0.5, -4})
		opt, err := NewAdam([]*tensor.Tensor{p}, DefaultAdamConfig())
		if err != nil {
			t.Fatalf("NewAdam failed: %v", err)
		}
		if err := opt.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		want := []float64{1 - 0.0002, 1 + 0.0002}
		for i := range want {
			if math.Abs(p.GetData()[i]-want[i]) > 1e-9 {
				t.Errorf("parameter %d: expected %v, got %v", i, want[i], p.GetData()[i])
			}
		}
		if opt.StepCount() != 1 {
			t.Errorf("expected step count 1, got %d", opt.StepCount())
		}
	})

	t.Run("zero grad", func(t *testing.T) {
		p := paramWithGrad(t, []float64{1}, []float64{3})
		opt, _ := NewAdam([]*tensor.Tensor{p}, DefaultAdamConfig())
		opt.ZeroGrad()
		if p.Grad.GetData()[0] != 0 {
			t.Errorf("ZeroGrad left %v", p.Grad.GetData())
		}
	})

	t.Run("shape mismatch leaves parameters untouched", func(t *testing.T) {
		good := paramWithGrad(t, []float64{1}, []float64{1})
		bad := paramWithGrad(t, []float64{1, 2}, []float64{1})
		opt, _ := NewAdam([]*tensor.Tensor{good, bad}, DefaultAdamConfig())
		if err := opt.Step(); err == nil {
			t.Fatal("expected a gradient shape error")
		}
		if good.GetData()[0] != 1 {
			t.Error("a failed step modified a parameter")
		}
	})

	t.Run("invalid betas", func(t *testing.T) {
		cfg := DefaultAdamConfig()
		cfg.Beta1 = 1
		p := paramWithGrad(t, []float64{1}, nil)
		if _, err := NewAdam([]*tensor.Tensor{p}, cfg); err == nil {
			t.Error("expected an error for beta1 = 1")
		}
	})
}

func TestSchedules(t *testing.T) {
	t.Run("linear decay", func(t *testing.T) {
		s, err := NewSchedule("linear", 1, 2, 3)
		if err != nil {
			t.Fatalf("NewSchedule failed: %v", err)
		}
		// factor = 1 - max(0, epoch + 1 - 2) / 4
		for epoch, want := range []float64{1, 1, 0.75, 0.5, 0.25, 0} {
			if got := s.Factor(epoch); math.Abs(got-want) > 1e-12 {
				t.Errorf("epoch %d: expected factor %v, got %v", epoch, want, got)
			}
		}
	})

	t.Run("constant", func(t *testing.T) {
		s, _ := NewSchedule("constant", 1, 2, 3)
		if s.Factor(100) != 1 {
			t.Error("constant schedule should always be 1")
		}
	})

	t.Run("unknown policy", func(t *testing.T) {
		if _, err := NewSchedule("cosine", 1, 2, 3); err == nil {
			t.Error("expected an error for an unknown policy")
		}
	})

	t.Run("scheduler updates the optimizer", func(t *testing.T) {
		p := paramWithGrad(t, []float64{1}, nil)
		opt, _ := NewSGD([]*tensor.Tensor{p}, 0.4)
		sched := NewScheduler(opt, LinearDecay{EpochCount: 1, NEpochs: 1, NEpochsDecay: 3})
		for _, want := range []float64{0.3, 0.2, 0.1, 0} {
			lr := sched.Step()
			if math.Abs(lr-want) > 1e-12 || math.Abs(opt.LearningRate()-want) > 1e-12 {
				t.Errorf("expected lr %v, got %v (optimizer %v)", want, lr, opt.LearningRate())
			}
		}
	})

	t.Run("resumed run starts decayed", func(t *testing.T) {
		p := paramWithGrad(t, []float64{1}, nil)
		opt, _ := NewSGD([]*tensor.Tensor{p}, 0.0002)
		sched := NewScheduler(opt, LinearDecay{EpochCount: 150, NEpochs: 100, NEpochsDecay: 100})
		// factor 1 - 50/101 before the first Step
		if got, want := opt.LearningRate(), 0.0002*(1-50.0/101); math.Abs(got-want) > 1e-15 {
			t.Fatalf("expected lr %v at construction, got %v", want, got)
		}
		if got, want := sched.Step(), 0.0002*(1-51.0/101); math.Abs(got-want) > 1e-15 {
			t.Errorf("expected lr %v after one epoch, got %v", want, got)
		}
	})
}

package model

import (
	"go-attentiongan/tensor"
)

// Phase is where a training step currently is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseForward
	PhaseGeneratorUpdate
	PhaseDiscriminatorUpdate
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseForward:
		return "forward"
	case PhaseGeneratorUpdate:
		return "generator_update"
	case PhaseDiscriminatorUpdate:
		return "discriminator_update"
	default:
		return "unknown"
	}
}

// PhaseHook is called on entry to every phase with the step being run.
// It must not keep the context past the call.
type PhaseHook func(phase Phase, step *StepContext)

// Batch is one unaligned pair of image batches with their source paths.
type Batch struct {
	A      *tensor.Tensor
	B      *tensor.Tensor
	APaths []string
	BPaths []string
}

// StepContext holds every tensor one step produces. A new one is built per step.
type StepContext struct {
	RealA, RealB *tensor.Tensor
	FakeA, FakeB *tensor.Tensor
	RecA, RecB   *tensor.Tensor
	IdtA, IdtB   *tensor.Tensor // nil unless identity loss is on

	// OutA is G_A's full output on real A (fake B plus its attention outputs),
	// OutB is G_B's on real B.
	OutA, OutB *GeneratorOutput

	RotatedRealA, RotatedRealB *tensor.Tensor
	RotatedFakeA, RotatedFakeB *tensor.Tensor

	// per-step loss tensors, nil until the phase that computes them has run
	LossGA, LossGB           *tensor.Tensor
	LossCycleA, LossCycleB   *tensor.Tensor
	LossIdtA, LossIdtB       *tensor.Tensor
	GClassLossA, GClassLossB *tensor.Tensor
	LossG                    *tensor.Tensor
	LossDA, LossDB           *tensor.Tensor
	RotationLossDA           *tensor.Tensor
	RotationLossDB           *tensor.Tensor
}


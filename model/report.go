package model

import (
	"fmt"
	"strings"

	"go-attentiongan/tensor"
)

// LossNames are the reported losses, in report order.
var LossNames = []string{"D_A", "G_A", "cycle_A", "idt_A", "D_B", "G_B", "cycle_B", "idt_B"}

// Losses is a snapshot of the scalar losses of the last completed step.
// Identity losses are 0 when identity loss is off.
type Losses struct {
	DA, GA, CycleA, IdtA float64
	DB, GB, CycleB, IdtB float64
}

// Map keys the losses by their reported names.
func (l Losses) Map() map[string]float64 {
	return map[string]float64{
		"D_A": l.DA, "G_A": l.GA, "cycle_A": l.CycleA, "idt_A": l.IdtA,
		"D_B": l.DB, "G_B": l.GB, "cycle_B": l.CycleB, "idt_B": l.IdtB,
	}
}

// Values returns the losses in LossNames order.
func (l Losses) Values() []float64 {
	return []float64{l.DA, l.GA, l.CycleA, l.IdtA, l.DB, l.GB, l.CycleB, l.IdtB}
}

func (l Losses) String() string {
	var sb strings.Builder
	for i, v := range l.Values() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s: %.3f", LossNames[i], v)
	}
	return sb.String()
}

// RotationLosses reports the weighted rotation terms of the last step: the
// discriminators' components (5*w*loss) and the generators' (w*loss).
type RotationLosses struct {
	DA, DB float64
	GA, GB float64
}

// NamedImage is one visual of the last forward pass.
type NamedImage struct {
	Name  string
	Image *tensor.Tensor
}

func itemOrZero(t *tensor.Tensor) float64 {
	if t == nil {
		return 0
	}
	return t.Item()
}

func (s *StepContext) losses() Losses {
	return Losses{
		DA: itemOrZero(s.LossDA), GA: itemOrZero(s.LossGA), CycleA: itemOrZero(s.LossCycleA), IdtA: itemOrZero(s.LossIdtA),
		DB: itemOrZero(s.LossDB), GB: itemOrZero(s.LossGB), CycleB: itemOrZero(s.LossCycleB), IdtB: itemOrZero(s.LossIdtB),
	}
}

func attentionVisuals(out *GeneratorOutput, suffix string) []NamedImage {
	var visuals []NamedImage
	if out == nil {
		return visuals
	}
	for i, t := range out.AttentionMaps {
		visuals = append(visuals, NamedImage{Name: fmt.Sprintf("o%d_%s", i+1, suffix), Image: t})
	}
	for i, t := range out.Masks {
		visuals = append(visuals, NamedImage{Name: fmt.Sprintf("a%d_%s", i+1, suffix), Image: t})
	}
	for i, t := range out.Intermediates {
		visuals = append(visuals, NamedImage{Name: fmt.Sprintf("i%d_%s", i+1, suffix), Image: t})
	}
	return visuals
}

// visuals lists the images of a step. saveDisk keeps the real, fake and last mask of each side.
func (s *StepContext) visuals(saveDisk, identity bool) []NamedImage {
	if saveDisk {
		var maskB, maskA *tensor.Tensor
		if s.OutA != nil {
			maskB = s.OutA.Masks[NumAttentionMaps-1]
		}
		if s.OutB != nil {
			maskA = s.OutB.Masks[NumAttentionMaps-1]
		}
		return []NamedImage{
			{Name: "real_A", Image: s.RealA}, {Name: "fake_B", Image: s.FakeB}, {Name: "a10_b", Image: maskB},
			{Name: "real_B", Image: s.RealB}, {Name: "fake_A", Image: s.FakeA}, {Name: "a10_a", Image: maskA},
		}
	}

	visuals := []NamedImage{{Name: "real_A", Image: s.RealA}, {Name: "fake_B", Image: s.FakeB}, {Name: "rec_A", Image: s.RecA}}
	visuals = append(visuals, attentionVisuals(s.OutA, "b")...)
	if identity {
		visuals = append(visuals, NamedImage{Name: "idt_B", Image: s.IdtB})
	}
	visuals = append(visuals, NamedImage{Name: "real_B", Image: s.RealB}, NamedImage{Name: "fake_A", Image: s.FakeA}, NamedImage{Name: "rec_B", Image: s.RecB})
	visuals = append(visuals, attentionVisuals(s.OutB, "a")...)
	if identity {
		visuals = append(visuals, NamedImage{Name: "idt_A", Image: s.IdtA})
	}
	return visuals
}

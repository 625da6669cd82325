package optimizer

import (
	"fmt"
	"math"
)

// Schedule maps an epoch index to a multiplier on the initial learning rate.
type Schedule interface {
	Factor(epoch int) float64
}

// Constant keeps the learning rate unchanged.
type Constant struct{}

func (Constant) Factor(int) float64 { return 1 }

// LinearDecay keeps the initial rate for NEpochs epochs and then decays it linearly
// to zero over NEpochsDecay epochs. EpochCount is the epoch a run starts (or resumes) at.
type LinearDecay struct {
	EpochCount   int
	NEpochs      int
	NEpochsDecay int
}

func (l LinearDecay) Factor(epoch int) float64 {
	return 1 - math.Max(0, float64(epoch+l.EpochCount-l.NEpochs))/float64(l.NEpochsDecay+1)
}

// NewSchedule builds a schedule by policy name ("constant" or "linear").
func NewSchedule(policy string, epochCount, nEpochs, nEpochsDecay int) (Schedule, error) {
	switch policy {
	case "", "constant":
		return Constant{}, nil
	case "linear":
		if nEpochsDecay < 0 || nEpochs < 0 {
			return nil, fmt.Errorf("optimizer: linear schedule needs non-negative epoch counts, got n_epochs=%d n_epochs_decay=%d", nEpochs, nEpochsDecay)
		}
		return LinearDecay{EpochCount: epochCount, NEpochs: nEpochs, NEpochsDecay: nEpochsDecay}, nil
	default:
		return nil, fmt.Errorf("optimizer: learning rate policy [%s] is not implemented", policy)
	}
}

// Scheduler applies a Schedule to one optimizer, relative to its initial learning rate.
type Scheduler struct {
	opt      Optimizer
	schedule Schedule
	initial  float64
	epoch    int
}

// NewScheduler takes the optimizer's current rate as the base and applies the
// epoch 0 factor right away, so a run resumed past n_epochs starts decayed.
func NewScheduler(opt Optimizer, schedule Schedule) *Scheduler {
	s := &Scheduler{opt: opt, schedule: schedule, initial: opt.LearningRate()}
	opt.SetLearningRate(s.initial * schedule.Factor(0))
	return s
}

// Step advances one epoch and returns the new learning rate.
func (s *Scheduler) Step() float64 {
	s.epoch++
	lr := s.initial * s.schedule.Factor(s.epoch)
	s.opt.SetLearningRate(lr)
	return lr
}

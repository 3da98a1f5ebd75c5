package ekf

// innovationStats tracks an exponentially weighted mean and variance of the
// innovations seen on one axis. Each observation's weight decays by decay
// per later observation.
type innovationStats struct {
	decay    float64
	mean     float64
	variance float64
}

func newInnovationStats(decay float64) innovationStats {
	return innovationStats{decay: decay}
}

// add folds x into the running estimates.
func (s *innovationStats) add(x float64) {
	d := x - s.mean
	step := (1 - s.decay) * d
	s.mean += step
	s.variance = s.decay * (s.variance + step*d)
}

package jitter

import (
	"math/rand"
	"time"
)

// Band is an inclusive interval range for randomized polling.
type Band struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Next returns a uniformly random duration in [Min, Max]. A degenerate band
// returns Min.
func (b Band) Next() time.Duration {
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + time.Duration(rand.Int63n(int64(b.Max-b.Min)+1))
}

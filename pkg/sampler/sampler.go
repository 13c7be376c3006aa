// Package sampler implements the deterministic sampling shared by all Honeycomb beelines.
//
// The decision for a given (rate, id) pair depends only on the SHA-1 digest of id, so every
// service that observes the same trace id keeps or drops it consistently.
package sampler

import (
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"math"
)

var ErrZeroRate = errors.New("sample rate must be greater or equal to 1")

// ShouldSample reports whether id is kept at 1-in-rate. A rate of 0 drops everything.
func ShouldSample(rate uint, id string) bool {
	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return hash(id) <= upperBound(rate)
}

// DeterministicSampler keeps 1 in Rate() ids.
type DeterministicSampler struct {
	rate  uint
	bound uint32
}

func NewDeterministicSampler(rate uint) (*DeterministicSampler, error) {
	if rate == 0 {
		return nil, ErrZeroRate
	}
	return &DeterministicSampler{rate: rate, bound: upperBound(rate)}, nil
}

func (s *DeterministicSampler) Rate() uint {
	return s.rate
}

func (s *DeterministicSampler) Sample(id string) bool {
	if s.rate == 1 {
		return true
	}
	return hash(id) <= s.bound
}

func upperBound(rate uint) uint32 {
	if uint64(rate) > math.MaxUint32 {
		return 0
	}
	return math.MaxUint32 / uint32(rate)
}

func hash(id string) uint32 {
	sum := sha1.Sum([]byte(id))
	return binary.BigEndian.Uint32(sum[:4])
}

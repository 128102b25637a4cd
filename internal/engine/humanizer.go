package engine

import (
	"math"
	"math/rand"
)

type Candidate struct {
	Move      string
	EvalCP    int
	Mate      bool
	Principal []string
}

// SelectCandidate draws one of the preset's primary candidates by weight.
// A winning mate among them is always played. The returned eval carries
// the preset's noise.
func SelectCandidate(p DifficultyPreset, candidates []Candidate, r *rand.Rand) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}
	if err := ValidatePreset(p); err != nil {
		return Candidate{}, err
	}

	primaryLimit := min(p.PrimaryChoices, len(candidates))

	for i := 0; i < primaryLimit; i++ {
		if candidates[i].Mate && candidates[i].EvalCP > 0 {
			return withNoise(candidates[i], p.EvalNoise, r), nil
		}
	}

	totalWeight := 0.0
	for i := 0; i < primaryLimit; i++ {
		totalWeight += p.CandidateWeights[i]
	}
	if totalWeight == 0 {
		// weights beyond the candidates we got
		return withNoise(candidates[0], p.EvalNoise, r), nil
	}

	threshold := r.Float64() * totalWeight
	index := primaryLimit - 1
	for i := 0; i < primaryLimit; i++ {
		threshold -= p.CandidateWeights[i]
		if threshold <= 0 {
			index = i
			break
		}
	}
	return withNoise(candidates[index], p.EvalNoise, r), nil
}

func withNoise(c Candidate, noise int, r *rand.Rand) Candidate {
	if noise > 0 {
		offset := r.Intn(2*noise+1) - noise
		c.EvalCP = saturatingAdd(c.EvalCP, offset)
	}
	return c
}

func saturatingAdd(a, b int) int {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt {
		return math.MaxInt
	}
	if sum < math.MinInt {
		return math.MinInt
	}
	return int(sum)
}

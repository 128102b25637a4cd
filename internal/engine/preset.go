package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/Cheese-Shogi-bot/internal/engine/usi"
)

type DifficultyPreset struct {
	Name             string
	Threads          int
	HashMB           int
	ByoyomiMillis    int
	NodeCap          int
	DepthCap         int
	MultiPV          int
	PrimaryChoices   int
	CandidateWeights []float64
	EvalNoise        int
}

const defaultThreads = 1

var presetMu sync.RWMutex

var DefaultPresets = map[string]DifficultyPreset{
	"level1": {
		Name:             "level1",
		Threads:          defaultThreads,
		HashMB:           16,
		NodeCap:          2000,
		DepthCap:         2,
		MultiPV:          5,
		PrimaryChoices:   5,
		CandidateWeights: []float64{0.3, 0.25, 0.2, 0.15, 0.1},
		EvalNoise:        150,
	},
	"level2": {
		Name:             "level2",
		Threads:          defaultThreads,
		HashMB:           16,
		NodeCap:          8000,
		DepthCap:         3,
		MultiPV:          5,
		PrimaryChoices:   4,
		CandidateWeights: []float64{0.4, 0.3, 0.2, 0.1},
		EvalNoise:        120,
	},
	"level3": {
		Name:             "level3",
		Threads:          defaultThreads,
		HashMB:           32,
		NodeCap:          30000,
		DepthCap:         4,
		MultiPV:          4,
		PrimaryChoices:   3,
		CandidateWeights: []float64{0.5, 0.3, 0.2},
		EvalNoise:        90,
	},
	"level4": {
		Name:             "level4",
		Threads:          defaultThreads,
		HashMB:           32,
		ByoyomiMillis:    100,
		DepthCap:         6,
		MultiPV:          4,
		PrimaryChoices:   3,
		CandidateWeights: []float64{0.6, 0.25, 0.15},
		EvalNoise:        60,
	},
	"level5": {
		Name:             "level5",
		Threads:          defaultThreads,
		HashMB:           64,
		ByoyomiMillis:    300,
		DepthCap:         8,
		MultiPV:          3,
		PrimaryChoices:   3,
		CandidateWeights: []float64{0.7, 0.2, 0.1},
		EvalNoise:        40,
	},
	"level6": {
		Name:             "level6",
		Threads:          2,
		HashMB:           128,
		ByoyomiMillis:    600,
		MultiPV:          3,
		PrimaryChoices:   2,
		CandidateWeights: []float64{0.8, 0.2},
		EvalNoise:        25,
	},
	"level7": {
		Name:             "level7",
		Threads:          2,
		HashMB:           256,
		ByoyomiMillis:    1000,
		MultiPV:          2,
		PrimaryChoices:   2,
		CandidateWeights: []float64{0.9, 0.1},
		EvalNoise:        10,
	},
	"level8": {
		Name:             "level8",
		Threads:          4,
		HashMB:           512,
		ByoyomiMillis:    2000,
		MultiPV:          1,
		PrimaryChoices:   1,
		CandidateWeights: []float64{1},
	},
}

var presetAliases = map[string]string{
	"beginner":     "level1",
	"intermediate": "level4",
	"advanced":     "level6",
	"master":       "level8",
}

func GetPreset(name string) (DifficultyPreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := presetAliases[key]; ok {
		key = alias
	}
	presetMu.RLock()
	p, ok := DefaultPresets[key]
	presetMu.RUnlock()
	if !ok {
		return DifficultyPreset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	p.CandidateWeights = append([]float64(nil), p.CandidateWeights...)
	return p, nil
}

// SetPreset registers or replaces a preset after validating it.
func SetPreset(p DifficultyPreset) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset name required")
	}
	if err := ValidatePreset(p); err != nil {
		return err
	}
	p.CandidateWeights = append([]float64(nil), p.CandidateWeights...)
	presetMu.Lock()
	DefaultPresets[p.Name] = p
	presetMu.Unlock()
	return nil
}

func PresetNames() []string {
	presetMu.RLock()
	names := make([]string, 0, len(DefaultPresets))
	for name := range DefaultPresets {
		names = append(names, name)
	}
	presetMu.RUnlock()
	sort.Strings(names)
	return names
}

func ValidatePreset(p DifficultyPreset) error {
	switch {
	case p.Threads <= 0:
		return fmt.Errorf("threads must be > 0: %d", p.Threads)
	case p.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", p.HashMB)
	case p.MultiPV <= 0:
		return fmt.Errorf("multipv must be > 0: %d", p.MultiPV)
	case p.PrimaryChoices <= 0:
		return fmt.Errorf("primary choices must be > 0: %d", p.PrimaryChoices)
	case p.PrimaryChoices > p.MultiPV:
		return fmt.Errorf("primary choices (%d) must not exceed multipv (%d)", p.PrimaryChoices, p.MultiPV)
	case len(p.CandidateWeights) < p.PrimaryChoices:
		return fmt.Errorf("candidate weights (%d) must cover primary choices (%d)", len(p.CandidateWeights), p.PrimaryChoices)
	case p.ByoyomiMillis < 0:
		return fmt.Errorf("byoyomi must be >= 0: %d", p.ByoyomiMillis)
	case p.NodeCap < 0:
		return fmt.Errorf("node cap must be >= 0: %d", p.NodeCap)
	case p.DepthCap < 0:
		return fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	case p.EvalNoise < 0:
		return fmt.Errorf("eval noise must be >= 0: %d", p.EvalNoise)
	case p.ByoyomiMillis == 0 && p.NodeCap == 0 && p.DepthCap == 0:
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	}

	sum := 0.0
	for i := 0; i < p.PrimaryChoices; i++ {
		w := p.CandidateWeights[i]
		if w < 0 {
			return fmt.Errorf("candidate weight at index %d is negative: %f", i, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("candidate weights sum to zero")
	}
	return nil
}

func optionsFromPreset(p DifficultyPreset) usi.Options {
	return usi.Options{Threads: p.Threads, HashMB: p.HashMB, MultiPV: p.MultiPV}
}

func limitsFromPreset(p DifficultyPreset) usi.Limits {
	return usi.Limits{Depth: p.DepthCap, ByoyomiMillis: p.ByoyomiMillis, NodeCap: p.NodeCap}
}

package service

import (
	"gymtrack/workout-app/internal/domain"
)

// Baseline carries the comparison values a record check runs against. A nil field
// means no prior value exists for that record type, which counts as negative
// infinity: any positive candidate beats it.
//
// The detector holds no state. The coordinator is responsible for always passing
// the most current baseline: the ledger value for the first set of a session, the
// running-updated value for every set after one beats it.
type Baseline struct {
	Weight *float64
	Volume *float64
}

// RecordCandidate is the detector's verdict for one set.
type RecordCandidate struct {
	IsRecord bool
	Type     domain.RecordType
	NewValue float64
}

// EvaluateSet decides whether a completed set beats the baseline. A single-rep set
// is a weight-record candidate compared against the baseline weight; a multi-rep
// set is a volume-record candidate (weight x reps) compared against the baseline
// volume. Comparison is strict: ties are never records.
func EvaluateSet(baseline Baseline, set domain.SetEntry) RecordCandidate {
	if set.Reps < 1 {
		return RecordCandidate{}
	}

	if set.Reps == 1 {
		return RecordCandidate{
			IsRecord: baseline.Weight == nil || set.Weight > *baseline.Weight,
			Type:     domain.RecordWeight,
			NewValue: set.Weight,
		}
	}

	volume := set.Volume()
	return RecordCandidate{
		IsRecord: baseline.Volume == nil || volume > *baseline.Volume,
		Type:     domain.RecordVolume,
		NewValue: volume,
	}
}

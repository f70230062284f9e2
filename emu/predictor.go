package emu

// PredictorStats holds branch predictor statistics.
type PredictorStats struct {
	// Predictions is the total number of predictions made.
	Predictions uint64
	// Correct is the number of correct taken/not-taken predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
	// BTBHits is the number of target-buffer hits.
	BTBHits uint64
	// BTBMisses is the number of target-buffer misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s PredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// Prediction is the answer to a branch predictor query.
type Prediction struct {
	// Taken indicates whether the branch is predicted taken.
	Taken bool
	// Target is the predicted target address, valid when TargetKnown.
	Target uint32
	// TargetKnown indicates whether the target buffer held an entry.
	TargetKnown bool
}

// BranchPredictor maintains a direct-mapped branch history table and
// branch target buffer, consulted on every branch-class instruction. A
// history entry records the last outcome at its tag; cold entries predict
// not-taken. The refetch/flush policy on misprediction belongs to the
// execution core.
type BranchPredictor struct {
	bht []bool

	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats PredictorStats
}

// btbEntry is one entry in the branch target buffer.
type btbEntry struct {
	pc     uint32
	target uint32
}

// NewBranchPredictor creates a predictor with the configured table sizes.
// Sizes must be powers of two (enforced by Config.Validate).
func NewBranchPredictor(cfg Config) *BranchPredictor {
	return &BranchPredictor{
		bht:      make([]bool, cfg.BHTSize),
		btb:      make([]btbEntry, cfg.BTBSize),
		btbValid: make([]bool, cfg.BTBSize),
		bhtSize:  cfg.BHTSize,
		btbSize:  cfg.BTBSize,
	}
}

// bhtTag derives the history-table tag from the low bits of the word
// address.
func (bp *BranchPredictor) bhtTag(pc uint32) uint32 {
	return (pc >> 2) & (bp.bhtSize - 1)
}

// btbTag derives the target-buffer tag from the low bits of the word
// address.
func (bp *BranchPredictor) btbTag(pc uint32) uint32 {
	return (pc >> 2) & (bp.btbSize - 1)
}

// Predict answers a taken/not-taken and target query for a branch at pc.
func (bp *BranchPredictor) Predict(pc uint32) Prediction {
	pred := Prediction{Taken: bp.bht[bp.bhtTag(pc)]}

	tag := bp.btbTag(pc)
	if bp.btbValid[tag] && bp.btb[tag].pc == pc {
		pred.Target = bp.btb[tag].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update records the resolved outcome and target of a branch at pc. Both
// tables are updated at their tags on every resolution.
func (bp *BranchPredictor) Update(pc uint32, taken bool, target uint32) {
	tag := bp.bhtTag(pc)
	if bp.bht[tag] == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}
	bp.bht[tag] = taken

	if taken {
		btag := bp.btbTag(pc)
		bp.btb[btag] = btbEntry{pc: pc, target: target}
		bp.btbValid[btag] = true
	}
}

// Stats returns the predictor statistics.
func (bp *BranchPredictor) Stats() PredictorStats {
	return bp.stats
}

// Reset clears both tables and the statistics, as at system reset.
func (bp *BranchPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = false
	}
	for i := range bp.btbValid {
		bp.btbValid[i] = false
	}
	bp.stats = PredictorStats{}
}

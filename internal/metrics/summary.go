package metrics

// Summary is the headline count block of one analysis.
type Summary struct {
	RecordCount     int
	ReplayCount     int
	MatchedCount    int
	DroppedCount    int
	DuplicatedCount int
	// ExceedsCount is the number of pairs flagged as exceeding tolerance.
	// Each one also counts once in DroppedCount and DuplicatedCount.
	ExceedsCount int
	SuccessRate  float64 // MatchedCount / RecordCount, 0 with an empty record track
}

// Summarize builds the summary from raw counts.
func Summarize(record, replay, matched, dropped, duplicated, exceeds int) Summary {
	s := Summary{
		RecordCount:     record,
		ReplayCount:     replay,
		MatchedCount:    matched,
		DroppedCount:    dropped,
		DuplicatedCount: duplicated,
		ExceedsCount:    exceeds,
	}
	if record > 0 {
		s.SuccessRate = float64(matched) / float64(record)
	}
	return s
}

// AnomalyCount is the total number of dropped and duplicated entries.
func (s Summary) AnomalyCount() int { return s.DroppedCount + s.DuplicatedCount }

package metrics

import "github.com/himanishpuri/HammerCheck/pkg/models"

// Offset is the per-pair alignment row shown in reports.
type Offset struct {
	RecordIndex    int
	ReplayIndex    int
	KeyID          int
	RecordKeyOn    int64
	RecordKeyOff   int64
	ReplayKeyOn    int64
	ReplayKeyOff   int64
	KeyOnOffset    int64 // replay - record
	KeyOffOffset   int64 // replay - record
	AverageOffset  float64
	RecordDuration int64
	ReplayDuration int64
	DurationDiff   int64 // replay - record
}

// Offsets builds one row per pair, in pair order.
func Offsets(pairs []models.MatchedPair) []Offset {
	rows := make([]Offset, 0, len(pairs))
	for _, p := range pairs {
		on := p.Replay.KeyOn() - p.Record.KeyOn()
		off := p.Replay.KeyOff() - p.Record.KeyOff()
		rows = append(rows, Offset{
			RecordIndex:    p.RecordIndex,
			ReplayIndex:    p.ReplayIndex,
			KeyID:          p.Record.KeyID,
			RecordKeyOn:    p.Record.KeyOn(),
			RecordKeyOff:   p.Record.KeyOff(),
			ReplayKeyOn:    p.Replay.KeyOn(),
			ReplayKeyOff:   p.Replay.KeyOff(),
			KeyOnOffset:    on,
			KeyOffOffset:   off,
			AverageOffset:  float64(on+off) / 2,
			RecordDuration: p.Record.Duration(),
			ReplayDuration: p.Replay.Duration(),
			DurationDiff:   p.Replay.Duration() - p.Record.Duration(),
		})
	}
	return rows
}

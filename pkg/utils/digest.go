package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// TrackDigest hashes the raw content of a record/replay pair together with
// params, the settings that shape the analysis. Two runs get the same digest
// only when events, their order and params all agree.
func TrackDigest(record, replay []models.Event, params ...int64) string {
	h := sha256.New()
	buf := make([]byte, 8)

	put := func(v int64) {
		binary.LittleEndian.PutUint64(buf, uint64(v))
		h.Write(buf)
	}
	track := func(events []models.Event) {
		put(int64(len(events)))
		for _, e := range events {
			put(int64(e.KeyID))
			put(e.TimeOrigin)
			put(int64(len(e.Strikes)))
			for _, s := range e.Strikes {
				put(s.Time)
				put(int64(s.Velocity))
			}
			put(int64(len(e.PressureSamples)))
			for _, p := range e.PressureSamples {
				put(p.Time)
				put(int64(p.Value))
			}
		}
	}

	track(record)
	track(replay)
	put(int64(len(params)))
	for _, p := range params {
		put(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

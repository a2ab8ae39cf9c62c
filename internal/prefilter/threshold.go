package prefilter

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"
	"sort"
)

// DefaultPWMTolerance is how far below its threshold a computed PWM may sit
// and still count as audible.
const DefaultPWMTolerance = 10.0

// MotorFit is the quadratic velocity->PWM fit of one key motor plus the PWM
// at which the hammer starts to sound.
type MotorFit struct {
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	C         float64 `json:"c"`
	Threshold float64 `json:"threshold"`
}

// PWM evaluates a*v^2 + b*v + c.
func (m MotorFit) PWM(velocity float64) float64 {
	return m.A*velocity*velocity + m.B*velocity + m.C
}

// MotorThresholds is an AudibilityChecker backed by per-motor fits keyed
// "motor_<key_id>".
type MotorThresholds struct {
	fits      map[string]MotorFit
	tolerance float64
}

// NewMotorThresholds wraps fits. A non-positive tolerance uses
// DefaultPWMTolerance.
func NewMotorThresholds(fits map[string]MotorFit, tolerance float64) *MotorThresholds {
	if tolerance <= 0 {
		tolerance = DefaultPWMTolerance
	}
	return &MotorThresholds{fits: fits, tolerance: tolerance}
}

// DecodeMotorThresholds reads {"motor_<id>": {"a","b","c","threshold"}}.
func DecodeMotorThresholds(r io.Reader, tolerance float64) (*MotorThresholds, error) {
	var fits map[string]MotorFit
	if err := json.NewDecoder(r).Decode(&fits); err != nil {
		return nil, fmt.Errorf("failed to decode motor thresholds: %w", err)
	}
	return NewMotorThresholds(fits, tolerance), nil
}

// LoadMotorThresholds reads a thresholds file from disk.
func LoadMotorThresholds(path string, tolerance float64) (*MotorThresholds, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open motor thresholds: %w", err)
	}
	defer f.Close()
	return DecodeMotorThresholds(f, tolerance)
}

// MotorName returns the fit key for a piano key.
func MotorName(keyID int) string { return fmt.Sprintf("motor_%d", keyID) }

// Audible reports whether the computed PWM reaches threshold - tolerance.
// Keys without a fit are reported as not audible.
func (m *MotorThresholds) Audible(keyID, velocity int) bool {
	fit, ok := m.fits[MotorName(keyID)]
	if !ok {
		return false
	}
	return fit.PWM(float64(velocity)) >= fit.Threshold-m.tolerance
}

// Len is the number of motors with a fit.
func (m *MotorThresholds) Len() int { return len(m.fits) }

// Fingerprint hashes the fits and the tolerance. Checkers built from the
// same file with the same tolerance share a fingerprint.
func (m *MotorThresholds) Fingerprint() uint64 {
	names := make([]string, 0, len(m.fits))
	for name := range m.fits {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	buf := make([]byte, 8)
	putFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		h.Write(buf)
	}
	putFloat(m.tolerance)
	for _, name := range names {
		fit := m.fits[name]
		h.Write([]byte(name))
		putFloat(fit.A)
		putFloat(fit.B)
		putFloat(fit.C)
		putFloat(fit.Threshold)
	}
	return h.Sum64()
}

package align

import (
	"fmt"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

const reasonInvalidDuration = "invalid duration (≤0), suspected abnormal event"

func noCandidateKey(keyID int) *models.Failure {
	return &models.Failure{
		Kind:   models.NoCandidateKey,
		Reason: fmt.Sprintf("no events for key_id=%d", keyID),
	}
}

func invalidDuration(best int64) *models.Failure {
	return &models.Failure{
		Kind:      models.InvalidDuration,
		Reason:    reasonInvalidDuration,
		BestError: best,
	}
}

func toleranceExceeded(best, tolerance int64) *models.Failure {
	return &models.Failure{
		Kind:      models.ToleranceExceeded,
		Reason:    fmt.Sprintf("time error too large (best=%d, tolerance=%d)", best, tolerance),
		BestError: best,
		Tolerance: tolerance,
	}
}

// AllOccupied builds the failure for a target whose in-tolerance candidates
// were all claimed by earlier decisions.
func AllOccupied(n int, best, tolerance int64) models.Failure {
	return models.Failure{
		Kind:       models.AllCandidatesOccupied,
		Reason:     fmt.Sprintf("all %d in-tolerance candidates already occupied (tolerance=%d)", n, tolerance),
		BestError:  best,
		Tolerance:  tolerance,
		Candidates: n,
	}
}

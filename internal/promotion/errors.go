package promotion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/branchflow/internal/gates"
)

var (
	// ErrInvalidTransition indicates the requested tier pair is not in the
	// pipeline. This is a usage error, not retryable.
	ErrInvalidTransition = errors.New("invalid tier transition")

	// ErrSourceNotReady indicates the source branch failed a promotion
	// precondition: dirty tree, unpushed commits, or a missing remote
	// target.
	ErrSourceNotReady = errors.New("source branch not ready for promotion")
)

// GatesFailedError carries the complete gate report of a failed run so the
// operator sees every failing gate at once.
type GatesFailedError struct {
	Report gates.Report
}

func (e *GatesFailedError) Error() string {
	var failed []string
	for _, res := range e.Report.Failed() {
		failed = append(failed, res.Gate)
	}
	return fmt.Sprintf("quality gates failed (%s): %s", e.Report.Summary(), strings.Join(failed, ", "))
}

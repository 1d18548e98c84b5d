package analysis

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docannot/internal/resource"
)

// ErrStageAnalysis matches every StageError.
var ErrStageAnalysis = errors.New("stage analysis failed")

// StageError reports the stage that failed an analysis. Nothing produced
// before the failure is returned to the caller.
type StageError struct {
	Stage resource.Stage
	Lang  resource.Language
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Lang, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrStageAnalysis }

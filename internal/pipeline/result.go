package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Result reports the outcome of one pipeline invocation.
type Result struct {
	// Name of the pipeline, "styles" or "scripts".
	Name string
	// Files written, in the order they were produced.
	Outputs  []string
	Duration time.Duration
	// Err is nil on success.
	Err error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Join collects the failures of the given results into one error, nil when all succeeded.
func Join(results ...Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}

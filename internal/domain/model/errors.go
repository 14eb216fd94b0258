package model

import (
	"github.com/cockroachdb/errors"
)

// Error kinds surfaced by the pipeline. Callers classify with errors.Is;
// constructors below mark a descriptive error with one of these.
var (
	// ErrResolution: the query could not be turned into a RequirementsSpec.
	ErrResolution = errors.New("resolution error")
	// ErrConfiguration: a resolved endpoint has no URL template.
	ErrConfiguration = errors.New("configuration error")
	// ErrFetch: the upstream could not be reached within the retry budget.
	ErrFetch = errors.New("fetch error")
	// ErrValidation: the canonical table lacks required columns.
	ErrValidation = errors.New("validation error")
)

// ResolutionErrorf builds a resolution error.
func ResolutionErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrResolution)
}

// WrapResolution marks err as a resolution error.
func WrapResolution(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrResolution)
}

// ConfigurationErrorf builds a configuration error.
func ConfigurationErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// FetchError builds a fetch error carrying the URL, attempt count and
// last status as details.
func FetchError(cause error, url string, attempts, status int) error {
	var err error
	if cause != nil {
		err = errors.Wrapf(cause, "fetch %s failed after %d attempts", url, attempts)
	} else {
		err = errors.Newf("fetch %s failed after %d attempts", url, attempts)
	}
	err = errors.WithDetailf(err, "url=%s attempts=%d last_status=%d", url, attempts, status)
	return errors.Mark(err, ErrFetch)
}

// ValidationError builds a validation error naming the missing columns.
func ValidationError(family Family, missing []string) error {
	err := errors.Newf("%s table missing required columns %v", family, missing)
	return errors.Mark(err, ErrValidation)
}

// Kind returns the matching error kind or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrResolution, ErrConfiguration, ErrFetch, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the filter, overlay and gate packages
var (
	// ErrPathNotFound means a KeyPath did not resolve to a node
	ErrPathNotFound = errors.New("path not found")
	// ErrUnsupportedLeafType means a discovered leaf is not a string, number or boolean
	ErrUnsupportedLeafType = errors.New("unsupported leaf type")
	// ErrInvalidPattern means a string filter pattern does not compile
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidOverrideJSON means override text is neither empty nor valid JSON
	ErrInvalidOverrideJSON = errors.New("invalid override JSON")
	// ErrChannelFailure means the readiness channel errored before signalling ready
	ErrChannelFailure = errors.New("readiness channel failure")
	// ErrUnsupportedPath means a textual path used something other than child or index steps
	ErrUnsupportedPath = errors.New("unsupported path expression")
)

// PathError reports the step at which a KeyPath stopped resolving
type PathError struct {
	Path KeyPath
	Step int // index into Path of the key that failed
	Err  error
}

func (e *PathError) Error() string {
	if e.Step < 0 || e.Step >= len(e.Path) {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Path, e.Path[e.Step], e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

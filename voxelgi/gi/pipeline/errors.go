package pipeline

import "errors"

var (
	ErrMissingPass     = errors.New("pipeline: renderer needs a GI backend and every collaborator")
	ErrInvalidViewport = errors.New("pipeline: viewport must be at least 1x1")
	ErrNoScene         = errors.New("pipeline: frame has no scene")
)

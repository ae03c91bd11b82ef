package engine

import "errors"

// Rejections surfaced to callers. The flow is left untouched whenever one of
// these is returned.
var ErrFlowNotFound = errors.New("flow not found")
var ErrNotOwner = errors.New("flow is not owned by the calling agent")
var ErrFlowTerminal = errors.New("flow already reached a terminal status")
var ErrNotWaiting = errors.New("flow is not waiting for an external event")
var ErrCorrelationMismatch = errors.New("reply correlation id does not match the awaited request")

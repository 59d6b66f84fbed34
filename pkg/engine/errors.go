package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoStartNode         = errors.New("flow has no start node")
	ErrInvalidChannel      = errors.New("invalid channel")
	ErrRunEnded            = errors.New("run has ended")
	ErrRunStarted          = errors.New("run has already started")
	ErrNotWaitingForInput  = errors.New("run is not waiting for text input")
	ErrNotWaitingForDigits = errors.New("run is not waiting for digits")
	ErrInvalidDigits       = errors.New("digits must only contain 0-9, * and #")
	ErrNotVoiceRun         = errors.New("run is not a voice call")
	ErrStepLimit           = errors.New("run exceeded the step limit")
)

// errStepAbandoned is returned by a paused step whose run was ended or reset meanwhile.
var errStepAbandoned = fmt.Errorf("step abandoned: %w", context.Canceled)

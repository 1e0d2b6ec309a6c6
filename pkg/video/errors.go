package video

import (
	"errors"
	"fmt"
)

// ErrNoVideoStream is reported when a source has no decodable video stream
var ErrNoVideoStream = errors.New("no decodable video stream")

// ExtractionError wraps failures while decoding frames from a source video
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("frame extraction: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AssemblyError wraps failures while encoding a frame sequence to video
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("video assembly: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// MuxError wraps failures while attaching the audio track
type MuxError struct {
	Err error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("audio mux: %v", e.Err)
}

func (e *MuxError) Unwrap() error { return e.Err }

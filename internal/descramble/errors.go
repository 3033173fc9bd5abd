package descramble

import "fmt"

// DecodeError reports image bytes no registered codec understands.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ScrambleParamError reports a tile geometry that cannot be applied to
// the image it arrived with.
type ScrambleParamError struct {
	Rows   int
	Cols   int
	Width  int
	Height int
	Reason string
}

func (e *ScrambleParamError) Error() string {
	return fmt.Sprintf("scramble grid %dx%d on %dx%d image: %s", e.Rows, e.Cols, e.Width, e.Height, e.Reason)
}

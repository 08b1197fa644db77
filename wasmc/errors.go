package wasmc

import "github.com/wippyai/wasmc/internal/wasmerr"

// decodeError wraps a raw decoder error (malformed binary, bad section
// order, LEB128 overflow — none of which are attributable to one function)
// as a structured *wasmerr.Error so Compile never returns a bare error.
func decodeError(err error) *wasmerr.Error {
	return wasmerr.New(wasmerr.PhaseDecode, wasmerr.KindMalformed).
		Detailf("%v", err).
		Cause(err).
		Build()
}

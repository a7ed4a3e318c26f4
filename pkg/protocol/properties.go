package protocol

import "strconv"

// RenderPropertyValue renders a single GetProperty response value for
// logging: when the value falls in the AppCrcCheck* or ReliableUpdate*
// status ranges it is rendered as the symbolic StatusCodes name,
// otherwise as its raw decimal value. Mirrors pyblhost's GetPropertyResponse
// logging, which does the same lookup for readability.
func RenderPropertyValue(value uint32) string {
	code := StatusCode(value)
	if code.IsCrcCheckStatus() || code.IsReliableUpdateStatus() {
		return code.String()
	}
	return strconv.FormatUint(uint64(value), 10)
}

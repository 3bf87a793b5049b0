package kerr

import "runtime"

// captureStack returns a formatted goroutine stack trace for inclusion in
// an Envelope when DEBUG_STACK=true. Never called on the default path.
func captureStack() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

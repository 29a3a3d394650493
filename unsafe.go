//go:build unsafe || tinygo

package mqtt

import "unsafe"

// bytesFromString returns the bytes backing s without copying. The result
// must never be written to; encoders only read from it.
func bytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

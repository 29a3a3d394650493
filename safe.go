//go:build !unsafe && !tinygo

package mqtt

// bytesFromString converts a topic string for encoding. Allocates.
func bytesFromString(s string) []byte {
	return []byte(s)
}

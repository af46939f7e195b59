package utils

import "unicode/utf8"

// sniffLength bounds the prefix inspected when detecting binary content.
const sniffLength = 8000

// IsBinary reports whether the provided byte slice appears to contain binary
// data: a NUL byte or invalid UTF-8 within the first sniffLength bytes.
func IsBinary(data []byte) bool {
	truncated := false
	if len(data) > sniffLength {
		data = data[:sniffLength]
		truncated = true
	}
	for index := 0; index < len(data); {
		if data[index] == 0 {
			return true
		}
		decoded, size := utf8.DecodeRune(data[index:])
		if decoded == utf8.RuneError && size == 1 {
			// a rune cut by the sniff window is not evidence of binary data
			return !(truncated && !utf8.FullRune(data[index:]))
		}
		index += size
	}
	return false
}

package nn

import "fmt"

// errorf creates a formatted error
func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("nn: "+format, args...)
}

// max returns the maximum of two ints
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

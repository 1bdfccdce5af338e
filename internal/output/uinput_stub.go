//go:build !linux

package output

// DefaultOpener returns the platform's real device opener. Without uinput
// support events are captured in memory only.
func DefaultOpener() Opener {
	return NewMemoryDevice
}

//go:build !linux && !darwin

package beep

const tickScale = 1

// No cue playback on this platform.
func newPlayer() player { return nil }

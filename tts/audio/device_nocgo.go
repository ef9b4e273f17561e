//go:build nocgo
// +build nocgo

package audio

import "errors"

// openDevice reports that this build has no audio output.
func openDevice(int) (Device, error) {
	return nil, errors.New("audio not available in nocgo build")
}

//go:build !linux && !darwin

package interaction

import "errors"

func makeRaw(int) (func() error, error) {
	return nil, errors.New("interactive keyboard is not supported on this platform, use --plain")
}

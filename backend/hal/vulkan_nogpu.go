//go:build nogpu

package hal

import "errors"

// New reports that the binary was built without GPU backends.
func New(...Option) (*Driver, error) {
	return nil, errors.New("hal: built with nogpu")
}

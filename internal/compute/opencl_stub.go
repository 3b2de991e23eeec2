//go:build !opencl

package compute

import "errors"

// ErrOpenCLDisabled reports that this binary was built without OpenCL
// support.
var ErrOpenCLDisabled = errors.New("compute: OpenCL support not compiled in; rebuild with -tags opencl")

// NewOpenCLBackend always fails in builds without the opencl tag.
func NewOpenCLBackend() (Backend, error) {
	return nil, ErrOpenCLDisabled
}

//go:build !cuda

package subtractor

import "github.com/pkg/errors"

func cudaAvailable() bool { return false }

func newCUDAMOG2(Params, *openingFilter) (Subtractor, error) {
	return nil, errors.Wrap(ErrUnavailable, "built without cuda support")
}

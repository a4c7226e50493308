package gpu

import "errors"

var (
	// ErrContextLost is returned by every device call after the graphics
	// context has been lost. Nothing recovers from it; components that see
	// it stay in a lost state until rebuilt on a new device.
	ErrContextLost = errors.New("gpu: context lost")

	// ErrTargetTooLarge means a requested render target exceeds the device
	// texture size limit.
	ErrTargetTooLarge = errors.New("gpu: render target exceeds device limit")

	// ErrUnknownProgram is returned when a device has no implementation for
	// a program name.
	ErrUnknownProgram = errors.New("gpu: unknown program")

	// ErrDisposed is returned when using a resource after Dispose.
	ErrDisposed = errors.New("gpu: resource disposed")

	// ErrInvalidSize is returned for zero or negative dimensions.
	ErrInvalidSize = errors.New("gpu: invalid size")
)

package core

import (
	"errors"
)

var (
	// Transient surface states. Recovered by recreating size-dependent resources.
	ErrSurfaceOutOfDate = errors.New("surface out of date")
	ErrSurfaceLost      = errors.New("surface lost")

	ErrDeviceLost       = errors.New("device lost")
	ErrWindowClosed     = errors.New("window closed")
	ErrRecreateFailed   = errors.New("swapchain recreation failed")
	ErrResourceCreation = errors.New("resource creation failed")
	ErrAssetLoad        = errors.New("asset load failed")
	ErrInvalidScene     = errors.New("invalid scene")
)

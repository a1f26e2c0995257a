package volume

import "errors"

var (
	ErrResolution       = errors.New("volume: resolution must be a power of two between 2 and 512")
	ErrWorldSize        = errors.New("volume: world size must be positive")
	ErrCapacityTooSmall = errors.New("volume: sparse capacity leaves no room for level 0")
	ErrRegionOverflow   = errors.New("volume: sparse region overflow")
	ErrAllocation       = errors.New("volume: allocation failed")
)

package pano

import "errors"

var (
	// ErrStageDestroyed is returned by operations on a destroyed stage.
	ErrStageDestroyed = errors.New("pano: stage destroyed")

	// ErrNilBackend is returned by NewStage without a backend.
	ErrNilBackend = errors.New("pano: nil backend")

	// ErrLayerExists is returned when adding a layer twice.
	ErrLayerExists = errors.New("pano: layer already on stage")

	// ErrLayerNotFound is returned for a layer that is not on the stage.
	ErrLayerNotFound = errors.New("pano: layer not on stage")

	// ErrWrongStage is returned when adding a layer created for another
	// stage.
	ErrWrongStage = errors.New("pano: layer belongs to another stage")

	// ErrInvalidIndex is returned for a layer position out of range.
	ErrInvalidIndex = errors.New("pano: layer index out of range")

	// ErrLayerDestroyed is returned by operations on a destroyed layer.
	ErrLayerDestroyed = errors.New("pano: layer destroyed")
)

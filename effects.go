package pano

// Rect is a rectangle relative to the stage: X, Y, Width and Height are
// fractions of the stage size, with the origin at the top left.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// FullRect covers the whole stage.
var FullRect = Rect{Width: 1, Height: 1}

// Effects are the per-layer compositing parameters.
type Effects struct {
	// Opacity multiplies the alpha of every tile, in [0, 1].
	Opacity float64

	// Rect is the part of the stage the layer draws into.
	Rect Rect

	// ColorOffset is added to every RGBA sample after opacity.
	ColorOffset [4]float64
}

// DefaultEffects returns opaque, full-stage effects.
func DefaultEffects() Effects {
	return Effects{Opacity: 1, Rect: FullRect}
}

// viewportSize returns the pixel size of r on a stage of the given size.
func (r Rect) viewportSize(width, height int) (int, int) {
	w := int(r.Width*float64(width) + 0.5)
	h := int(r.Height*float64(height) + 0.5)
	return max(w, 1), max(h, 1)
}

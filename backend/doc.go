// Package backend is the registry of pano stage backends.
//
// Backends register a factory under a name from an init function, so a
// program picks one by importing it:
//
//	import _ "github.com/gogpu/pano/backend/software"
//
//	b, err := backend.New("software", 800, 600)
//	stage, err := pano.NewStage(b)
//
// Backends that need a host object, such as backend/gpucanvas with its
// gpucontext.TextureDrawer, are constructed directly instead.
package backend

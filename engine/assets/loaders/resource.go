package loaders

type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota
	// Compiled SPIR-V module.
	ResourceTypeShader
	// GLSL source, compiled to a shader by the build.
	ResourceTypeShaderSource
)

type Resource struct {
	Name     string
	FullPath string
	DataSize uint64
	Data     []byte
}

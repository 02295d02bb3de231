package assets

import "github.com/spaghettifunk/inflight/engine/assets/loaders"

// Loader turns a file of the asset directory into a resource.
type Loader interface {
	Load(path string) (*loaders.Resource, error)
}

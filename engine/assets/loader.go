package assets

import "github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"

type Loader interface {
	// Load reads path into a resource. params is loader specific and may be nil.
	Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}

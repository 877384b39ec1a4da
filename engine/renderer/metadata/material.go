package metadata

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/**
 * @brief A material as referenced by scene primitives.
 */
type Material struct {
	Name string
	/** @brief Multiplied with the sampled base color. */
	BaseColorFactor [4]float32
	/** @brief Index into the scene texture list, or -1 for the white texture. */
	Texture int
}

func DefaultMaterial() Material {
	return Material{
		Name:            DefaultMaterialName,
		BaseColorFactor: [4]float32{1, 1, 1, 1},
		Texture:         -1,
	}
}

package metadata

/**
 * @brief Decoded RGBA8 pixels ready for upload.
 */
type ImageResourceData struct {
	/** @brief The number of channels. Always 4 after decoding. */
	ChannelCount uint8
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image, row major, 4 bytes per pixel. */
	Pixels []uint8
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
	/** @brief Images larger than this on either side are downscaled. Zero disables. */
	MaxSize uint32
}

// WhiteImage is a 1x1 opaque white texture used by untextured materials.
func WhiteImage() *ImageResourceData {
	return &ImageResourceData{
		ChannelCount: 4,
		Width:        1,
		Height:       1,
		Pixels:       []uint8{255, 255, 255, 255},
	}
}

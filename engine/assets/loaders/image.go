package loaders

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/spaghettifunk/anima-viewer/engine/core"
	"github.com/spaghettifunk/anima-viewer/engine/renderer/metadata"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	typedParams, ok := params.(*metadata.ImageResourceParams)
	if !ok || typedParams == nil {
		typedParams = &metadata.ImageResourceParams{}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	defer f.Close()

	data, err := DecodeImage(f, typedParams)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &metadata.Resource{
		Name:     path,
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// DecodeImage reads a PNG, JPEG or WebP image into tightly packed RGBA8,
// downscaling it when it exceeds params.MaxSize.
func DecodeImage(r io.Reader, params *metadata.ImageResourceParams) (*metadata.ImageResourceData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssetLoad, err)
	}
	rgba := toRGBA(src)
	if params != nil && params.MaxSize > 0 {
		rgba = downscale(rgba, int(params.MaxSize))
	}
	if params != nil && params.FlipY {
		flipY(rgba)
	}
	b := rgba.Bounds()
	return &metadata.ImageResourceData{
		ChannelCount: 4,
		Width:        uint32(b.Dx()),
		Height:       uint32(b.Dy()),
		Pixels:       rgba.Pix,
	}, nil
}

// DecodeImageBytes is DecodeImage over an in-memory encoding.
func DecodeImageBytes(data []byte, params *metadata.ImageResourceParams) (*metadata.ImageResourceData, error) {
	return DecodeImage(bytes.NewReader(data), params)
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// downscale keeps the aspect ratio and fits the longer side to maxSize.
func downscale(src *image.RGBA, maxSize int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w <= maxSize && h <= maxSize {
		return src
	}
	nw, nh := maxSize, maxSize
	if w > h {
		nh = max(1, h*maxSize/w)
	} else {
		nw = max(1, w*maxSize/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	core.LogDebug("Texture downscaled from %dx%d to %dx%d.", w, h, nw, nh)
	return dst
}

func flipY(img *image.RGBA) {
	stride := img.Stride
	h := img.Rect.Dy()
	tmp := make([]byte, stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*stride : (y+1)*stride]
		bottom := img.Pix[(h-1-y)*stride : (h-y)*stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}

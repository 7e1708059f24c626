package schema

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"

	"medpredict/internal/domain"
)

// Tensor is a preprocessed fixed-shape image input in CHW layout, derived
// deterministically from the uploaded bytes and the ImageSpec.
type Tensor struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// ExtractImage validates and preprocesses an uploaded image into the tensor
// shape the image model expects: extension check, decode, RGB conversion,
// resize to the fixed resolution, per-channel normalization. All failures are
// reported as image-processing errors before any model invocation.
func ExtractImage(spec *ImageSpec, filename string, data []byte) (*Tensor, error) {
	if len(data) == 0 {
		return nil, domain.ImageError("uploaded image is empty")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !extensionAllowed(spec, ext) {
		return nil, domain.ImageError("unsupported image format %q, expected one of %s",
			ext, strings.Join(spec.Extensions, ", "))
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ImageError("decode failed: %v", err)
	}

	// Resize into a fixed-resolution RGBA buffer.
	dst := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	t := &Tensor{
		Channels: 3,
		Height:   spec.Height,
		Width:    spec.Width,
		Data:     make([]float32, 3*spec.Height*spec.Width),
	}
	plane := spec.Height * spec.Width
	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			i := dst.PixOffset(x, y)
			pix := y*spec.Width + x
			for c := 0; c < 3; c++ {
				v := float64(dst.Pix[i+c]) / 255.0
				t.Data[c*plane+pix] = float32((v - spec.Mean[c]) / spec.Std[c])
			}
		}
	}
	return t, nil
}

func extensionAllowed(spec *ImageSpec, ext string) bool {
	for _, allowed := range spec.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

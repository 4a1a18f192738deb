package imageprocessor

import (
	"errors"
	"fmt"
	"image"
	"io"

	// register decoders for uploads
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/example/leaf-check/internal/model"
)

// ImageNet statistics the classifier was trained with.
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// ErrEmptyImage is returned for nil or zero-sized images.
var ErrEmptyImage = errors.New("empty image")

// Decode reads a JPEG or PNG upload, applying any EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// Preprocess turns an image into the [1,3,224,224] normalized input of the classifier.
func Preprocess(img image.Image) (model.Tensor, error) {
	return PreprocessSize(img, model.DefaultInputSize)
}

// PreprocessSize drops alpha, resizes to size×size with bilinear interpolation, scales to [0,1],
// normalizes each channel with Mean/Std and lays the result out channel-first with a
// leading batch dimension.
func PreprocessSize(img image.Image, size int) (t model.Tensor, err error) {
	if img == nil || img.Bounds().Empty() {
		return model.Tensor{}, ErrEmptyImage
	}
	if size <= 0 {
		return model.Tensor{}, fmt.Errorf("invalid target size %d", size)
	}
	defer func() {
		if r := recover(); r != nil {
			t, err = model.Tensor{}, fmt.Errorf("preprocess image: %v", r)
		}
	}()

	resized := resize.Resize(uint(size), uint(size), opaque(img), resize.Bilinear)
	bounds := resized.Bounds()

	t = model.NewTensor(1, 3, size, size)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*size + x
			t.Data[idx] = (float32(r>>8)/255 - Mean[0]) / Std[0]
			t.Data[plane+idx] = (float32(g>>8)/255 - Mean[1]) / Std[1]
			t.Data[2*plane+idx] = (float32(b>>8)/255 - Mean[2]) / Std[2]
		}
	}
	return t, nil
}

// opaque drops the alpha channel and keeps the stored colour of every pixel, so
// translucent areas are not darkened by premultiplication during resampling.
func opaque(img image.Image) *image.NRGBA {
	flat := imaging.Clone(img)
	for i := 3; i < len(flat.Pix); i += 4 {
		flat.Pix[i] = 0xff
	}
	return flat
}

// NormalizedRange returns the lowest and highest value channel c can take after
// normalization.
func NormalizedRange(c int) (lo, hi float32) {
	return (0 - Mean[c]) / Std[c], (1 - Mean[c]) / Std[c]
}

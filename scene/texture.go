package scene

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"render-pipeline/math"
)

// Texture holds CPU-side pixel data for a 2D texture plus the UV transform
// applied when it is sampled.
type Texture struct {
	Name   string
	Width  int
	Height int
	// Pixels in RGBA8 format (4 bytes per pixel, row-major, top-to-bottom).
	Pixels []byte

	Offset   math.Vec2
	Repeat   math.Vec2
	Rotation float32 // radians, around Center
	Center   math.Vec2
}

// Matrix returns the UV transform built from Offset, Repeat, Rotation and Center.
func (t *Texture) Matrix() math.Mat3 {
	return math.Mat3UVTransform(t.Offset, t.Repeat, t.Rotation, t.Center)
}

// NewTextureFromImage copies img into an RGBA8 texture.
func NewTextureFromImage(name string, img image.Image) *Texture {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &Texture{
		Name:   name,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix,
		Repeat: math.Vec2{X: 1, Y: 1},
	}
}

// LoadTexture reads a PNG, JPEG, BMP, TIFF or WebP file and returns a
// CPU-side Texture converted to RGBA8.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode texture %q: %w", path, err)
	}
	return NewTextureFromImage(path, img), nil
}

// NewSolidTexture creates a 1x1 texture with the given RGBA color values (0–255).
func NewSolidTexture(name string, r, g, b, a uint8) *Texture {
	return &Texture{
		Name:   name,
		Width:  1,
		Height: 1,
		Pixels: []byte{r, g, b, a},
		Repeat: math.Vec2{X: 1, Y: 1},
	}
}

// NewCheckerTexture creates a size x size checkerboard with cells of cell pixels.
func NewCheckerTexture(name string, size, cell int, a, b [4]uint8) *Texture {
	if cell < 1 {
		cell = 1
	}
	pix := make([]byte, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			copy(pix[(y*size+x)*4:], c[:])
		}
	}
	return &Texture{
		Name:   name,
		Width:  size,
		Height: size,
		Pixels: pix,
		Repeat: math.Vec2{X: 1, Y: 1},
	}
}

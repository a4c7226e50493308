package gpu

import "fmt"

// Format is the pixel storage of a render target.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA16F:
		return "rgba16f"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Filter is the sampling filter of a render target texture.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

// TargetOptions configures NewRenderTarget.
type TargetOptions struct {
	Format     Format
	Depth      bool
	Filter     Filter
	Anisotropy int
}

// Texture is the sampling handle of a render target. It stays the same
// object across resizes, so uniforms referencing it never need rebinding.
type Texture struct {
	target *RenderTarget
}

// Target returns the render target backing the texture.
func (t *Texture) Target() *RenderTarget { return t.target }

func (t *Texture) Width() int  { return t.target.Width }
func (t *Texture) Height() int { return t.target.Height }

// RenderTarget is an off-screen colour buffer with optional depth.
type RenderTarget struct {
	Width   int
	Height  int
	Options TargetOptions
	Texture *Texture

	// Handle is owned by the device that created the target.
	Handle any

	device Device
}

// NewRenderTarget allocates a target on d.
func NewRenderTarget(d Device, width, height int, opts TargetOptions) (*RenderTarget, error) {
	if err := ValidateSize(d, width, height); err != nil {
		return nil, fmt.Errorf("render target %dx%d: %w", width, height, err)
	}
	rt := &RenderTarget{
		Width:   width,
		Height:  height,
		Options: opts,
		device:  d,
	}
	rt.Texture = &Texture{target: rt}
	if err := d.CreateTarget(rt); err != nil {
		return nil, fmt.Errorf("render target %dx%d: %w", width, height, err)
	}
	return rt, nil
}

// SetSize resizes the target in place. It is a no-op when the size is
// unchanged.
func (rt *RenderTarget) SetSize(width, height int) error {
	if rt.device == nil {
		return ErrDisposed
	}
	if width == rt.Width && height == rt.Height {
		return nil
	}
	if err := ValidateSize(rt.device, width, height); err != nil {
		return fmt.Errorf("resize target to %dx%d: %w", width, height, err)
	}
	if err := rt.device.ResizeTarget(rt, width, height); err != nil {
		return fmt.Errorf("resize target to %dx%d: %w", width, height, err)
	}
	rt.Width = width
	rt.Height = height
	return nil
}

// Dispose releases the device storage. Safe to call more than once.
func (rt *RenderTarget) Dispose() {
	if rt.device == nil {
		return
	}
	rt.device.DestroyTarget(rt)
	rt.device = nil
	rt.Handle = nil
}

func (rt *RenderTarget) Disposed() bool {
	return rt.device == nil
}

package core

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// GL calls must come from the thread that owns the context.
	runtime.LockOSThread()
}

// Window owns a GLFW window and its OpenGL 4.1 core context.
// Width and Height are in screen coordinates; the framebuffer may be
// larger on high-DPI displays.
type Window struct {
	handle *glfw.Window
	Width  int
	Height int
	Title  string

	onResize []ResizeCallback
}

type WindowConfig struct {
	Width      int
	Height     int
	Title      string
	Resizable  bool
	VSync      bool
	Fullscreen bool
}

// ResizeCallback receives the window size in screen coordinates and the
// device pixel ratio (framebuffer pixels per screen coordinate).
type ResizeCallback func(width, height int, dpr float32)

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Width:     1280,
		Height:    720,
		Title:     "Render Pipeline",
		Resizable: true,
		VSync:     true,
	}
}

func glfwBool(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

// NewWindow initialises GLFW and makes the new context current on the
// locked main thread.
func NewWindow(cfg WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	for hint, value := range map[glfw.Hint]int{
		glfw.ContextVersionMajor:     4,
		glfw.ContextVersionMinor:     1,
		glfw.OpenGLProfile:           glfw.OpenGLCoreProfile,
		glfw.OpenGLForwardCompatible: glfw.True,
		glfw.Resizable:               glfwBool(cfg.Resizable),
		glfw.ScaleToMonitor:          glfw.True,
	} {
		glfw.WindowHint(hint, value)
	}

	var monitor *glfw.Monitor
	if cfg.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}
	handle, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window %dx%d: %w", cfg.Width, cfg.Height, err)
	}
	handle.MakeContextCurrent()
	glfw.SwapInterval(glfwBool(cfg.VSync))

	w := &Window{handle: handle, Width: cfg.Width, Height: cfg.Height, Title: cfg.Title}
	handle.SetSizeCallback(func(_ *glfw.Window, width, height int) {
		w.Width, w.Height = width, height
		w.notifyResize()
	})
	handle.SetContentScaleCallback(func(*glfw.Window, float32, float32) {
		w.notifyResize()
	})
	return w, nil
}

// PixelRatio returns framebuffer pixels per screen coordinate.
func (w *Window) PixelRatio() float32 {
	fbw, _ := w.handle.GetFramebufferSize()
	if w.Width <= 0 || fbw <= 0 {
		return 1
	}
	return float32(fbw) / float32(w.Width)
}

// OnResize registers a callback fired whenever the size or content scale
// changes. Minimised windows do not fire.
func (w *Window) OnResize(cb ResizeCallback) {
	w.onResize = append(w.onResize, cb)
}

func (w *Window) notifyResize() {
	if w.Width <= 0 || w.Height <= 0 {
		return
	}
	dpr := w.PixelRatio()
	for _, cb := range w.onResize {
		cb(w.Width, w.Height, dpr)
	}
}

func (w *Window) ShouldClose() bool              { return w.handle.ShouldClose() }
func (w *Window) PollEvents()                    { glfw.PollEvents() }
func (w *Window) SwapBuffers()                   { w.handle.SwapBuffers() }
func (w *Window) GetFramebufferSize() (int, int) { return w.handle.GetFramebufferSize() }

func (w *Window) IsKeyPressed(key int) bool {
	return w.handle.GetKey(glfw.Key(key)) == glfw.Press
}

func (w *Window) SetTitle(title string) {
	w.handle.SetTitle(title)
	w.Title = title
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.handle.Destroy()
	glfw.Terminate()
}

// Key codes used by the demo controls.
const (
	KeySpace        = int(glfw.KeySpace)
	KeyMinus        = int(glfw.KeyMinus)
	KeyEqual        = int(glfw.KeyEqual)
	KeyLeftBracket  = int(glfw.KeyLeftBracket)
	KeyRightBracket = int(glfw.KeyRightBracket)
	KeyB            = int(glfw.KeyB)
	KeyN            = int(glfw.KeyN)
	KeyR            = int(glfw.KeyR)
	KeyEscape       = int(glfw.KeyEscape)
	KeyLeft         = int(glfw.KeyLeft)
	KeyRight        = int(glfw.KeyRight)
	KeyUp           = int(glfw.KeyUp)
	KeyDown         = int(glfw.KeyDown)
)

package main

import (
	"fmt"
	"strings"

	"render-pipeline/postprocess"
	"render-pipeline/reflector"
	"render-pipeline/renderer"
)

// statusLine collects per-frame numbers and renders them once per
// interval, for the window title or the log.
type statusLine struct {
	interval float64
	elapsed  float64
	frames   int
	parts    []string
}

func newStatusLine(interval float64) *statusLine {
	return &statusLine{interval: interval}
}

func (s *statusLine) add(format string, args ...any) {
	s.parts = append(s.parts, fmt.Sprintf(format, args...))
}

// Tick counts one frame and reports whether a new line is due.
func (s *statusLine) Tick(delta float64) bool {
	s.elapsed += delta
	s.frames++
	return s.elapsed >= s.interval
}

// Compose builds the line from the current state and restarts the
// interval.
func (s *statusLine) Compose(r *renderer.Renderer, p *postprocess.Pipeline, mirror *reflector.Reflector, dn *DayNight) string {
	s.parts = s.parts[:0]
	if s.elapsed > 0 {
		s.add("%.0f fps", float64(s.frames)/s.elapsed)
	}
	objects, _, triangles, culled := r.DrawStats()
	s.add("%d objects (%d culled) %d tris", objects, culled, triangles)
	s.add("bloom %.2f", p.Options().BloomStrength)
	st := mirror.Stats()
	s.add("mirror %d/%d", st.Rendered, st.Rendered+st.Skipped)
	if dn != nil {
		s.add("%s", dn.Clock())
	}
	s.elapsed, s.frames = 0, 0
	return strings.Join(s.parts, " | ")
}

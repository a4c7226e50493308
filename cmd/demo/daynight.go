package main

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	"render-pipeline/core"
	"render-pipeline/math"
	"render-pipeline/scene"
)

// lighting is the showroom light state at one time of day.
type lighting struct {
	t            float32
	sky          core.Color
	fog          core.Color
	fogFar       float32
	sun          core.Color
	sunIntensity float32
	ambient      core.Color
}

// Keyframes over one cycle: 0 is noon, 0.5 midnight. The last key wraps to
// the first.
var keyframes = []lighting{
	{
		t:            0,
		sky:          core.Color{R: 0.38, G: 0.60, B: 0.90, A: 1},
		fog:          core.Color{R: 0.62, G: 0.75, B: 0.88, A: 1},
		fogFar:       90,
		sun:          core.Color{R: 1.00, G: 0.96, B: 0.88, A: 1},
		sunIntensity: 1.1,
		ambient:      core.Color{R: 0.28, G: 0.30, B: 0.36, A: 1},
	},
	{
		t:            0.25,
		sky:          core.Color{R: 0.85, G: 0.35, B: 0.12, A: 1},
		fog:          core.Color{R: 0.70, G: 0.32, B: 0.16, A: 1},
		fogFar:       60,
		sun:          core.Color{R: 1.00, G: 0.50, B: 0.18, A: 1},
		sunIntensity: 0.55,
		ambient:      core.Color{R: 0.18, G: 0.12, B: 0.14, A: 1},
	},
	{
		t:            0.5,
		sky:          core.Color{R: 0.02, G: 0.03, B: 0.08, A: 1},
		fog:          core.Color{R: 0.03, G: 0.03, B: 0.06, A: 1},
		fogFar:       40,
		sun:          core.Color{R: 0.40, G: 0.45, B: 0.65, A: 1},
		sunIntensity: 0.12,
		ambient:      core.Color{R: 0.03, G: 0.04, B: 0.09, A: 1},
	},
	{
		t:            0.78,
		sky:          core.Color{R: 0.88, G: 0.45, B: 0.22, A: 1},
		fog:          core.Color{R: 0.75, G: 0.40, B: 0.20, A: 1},
		fogFar:       70,
		sun:          core.Color{R: 1.00, G: 0.60, B: 0.28, A: 1},
		sunIntensity: 0.7,
		ambient:      core.Color{R: 0.09, G: 0.10, B: 0.17, A: 1},
	},
}

// DayNight animates the showroom lights. Night is where the emissive
// props carry the frame and the bloom shows most.
type DayNight struct {
	Time   float32 // [0, 1)
	Period float32 // seconds per cycle
	Active bool
}

func NewDayNight(period float32) *DayNight {
	return &DayNight{Period: period, Active: true}
}

func (dn *DayNight) Update(delta float32) {
	if !dn.Active || dn.Period <= 0 {
		return
	}
	dn.Time = wrap01(dn.Time + delta/dn.Period)
}

func wrap01(t float32) float32 {
	t -= math32.Floor(t)
	if t >= 1 {
		t = 0
	}
	return t
}

// sample interpolates the keyframes at t.
func sample(t float32) lighting {
	t = wrap01(t)
	n := len(keyframes)
	// first key strictly after t
	i := sort.Search(n, func(i int) bool { return keyframes[i].t > t })
	a := keyframes[(i-1+n)%n]
	b := keyframes[i%n]

	ta, tb := a.t, b.t
	if tb <= ta {
		tb++
	}
	if t < ta {
		t++
	}
	f := (t - ta) / (tb - ta)

	return lighting{
		sky:          lerpColor(a.sky, b.sky, f),
		fog:          lerpColor(a.fog, b.fog, f),
		fogFar:       lerp(a.fogFar, b.fogFar, f),
		sun:          lerpColor(a.sun, b.sun, f),
		sunIntensity: lerp(a.sunIntensity, b.sunIntensity, f),
		ambient:      lerpColor(a.ambient, b.ambient, f),
	}
}

func lerp(a, b, f float32) float32 { return a + (b-a)*f }

func lerpColor(a, b core.Color, f float32) core.Color {
	return core.Color{R: lerp(a.R, b.R, f), G: lerp(a.G, b.G, f), B: lerp(a.B, b.B, f), A: 1}
}

// Apply writes the current light state into s. sun may be nil.
func (dn *DayNight) Apply(s *scene.Scene, sun *scene.Light) {
	l := sample(dn.Time)
	if sun != nil {
		angle := dn.Time * 2 * math32.Pi
		// straight down at noon, below the floor at midnight
		sun.Direction = math.NewVec3(math32.Sin(angle), -math32.Cos(angle), 0.35).Normalize()
		sun.Color = l.sun
		sun.Intensity = l.sunIntensity
	}
	s.Ambient = l.ambient
	s.Background = l.sky
	if s.Fog == nil {
		s.Fog = scene.NewFog(l.fog, 10, l.fogFar)
	}
	s.Fog.Color = l.fog
	s.Fog.Far = l.fogFar
}

// Clock formats the cycle time as a 24 hour clock starting at noon.
func (dn *DayNight) Clock() string {
	minutes := int(dn.Time*24*60+12*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

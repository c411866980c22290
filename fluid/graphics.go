package fluid

import (
	"time"

	"github.com/notargets/avs/chart2d"
	utils2 "github.com/notargets/avs/utils"

	"github.com/Tatha911/OpenIFEM/mesh"
)

// Plotter shows the mid-channel velocity profile live while a run advances.
type Plotter struct {
	chart    *chart2d.Chart2D
	colorMap *utils2.ColorMap
	delay    time.Duration
}

func NewPlotter(height, umax float64, graphDelay ...time.Duration) (pl *Plotter) {
	pl = &Plotter{
		chart:    chart2d.NewChart2D(1920, 1280, 0, float32(height), 0, float32(1.1*umax)),
		colorMap: utils2.NewColorMap(-1, 1, 1),
	}
	if len(graphDelay) != 0 {
		pl.delay = graphDelay[0]
	}
	go pl.chart.Plot()
	return
}

// Update samples the streamwise velocity along the vertical line through the
// channel center and redraws the profile series.
func (pl *Plotter) Update(s *InsIMEX, samples int) {
	var (
		xs = make([]float64, samples)
		ys = make([]float64, samples)
		xc = s.Params.Width / 2
	)
	for k := 0; k < samples; k++ {
		y := s.Params.Height * (float64(k) + 0.5) / float64(samples)
		xs[k] = y
		ys[k] = s.SampleVelocity(mesh.Point{X: xc, Y: y})[0]
	}
	if err := pl.chart.AddSeries("U profile", xs, ys,
		chart2d.NoGlyph, chart2d.Solid, pl.colorMap.GetRGB(0)); err != nil {
		panic("unable to add graph series")
	}
	if pl.delay != 0 {
		time.Sleep(pl.delay)
	}
}

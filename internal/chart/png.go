package chart

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	distanceColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	bandColor     = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
)

// SavePNG renders pts to a PNG image at path.
func SavePNG(path, title string, pts []Point) error {
	if len(pts) == 0 {
		return ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Activation (min)"
	p.Y.Label.Text = "Range (m)"
	p.Y.Min = 0

	dist := make(plotter.XYs, len(pts))
	p5 := make(plotter.XYs, len(pts))
	p95 := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		dist[i] = plotter.XY{X: pt.ActivationTime, Y: pt.Distance}
		p5[i] = plotter.XY{X: pt.ActivationTime, Y: pt.P5}
		p95[i] = plotter.XY{X: pt.ActivationTime, Y: pt.P95}
	}

	distLine, err := plotter.NewLine(dist)
	if err != nil {
		return err
	}
	distLine.Color = distanceColor
	distLine.Width = vg.Points(2)
	p.Add(distLine)
	p.Legend.Add("distance", distLine)

	for _, band := range []struct {
		name string
		xys  plotter.XYs
	}{{"p5", p5}, {"p95", p95}} {
		l, err := plotter.NewLine(band.xys)
		if err != nil {
			return err
		}
		l.Color = bandColor
		l.Width = vg.Points(1)
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(l)
		p.Legend.Add(band.name, l)
	}
	p.Add(plotter.NewGrid())

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

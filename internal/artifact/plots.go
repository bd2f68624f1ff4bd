package artifact

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/Hrishi-524/DeepOrbit/internal/diagnostics"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
)

// Clock plot file names.
const (
	ClockPredictionName  = "clock_error_prediction.png"
	ClockLossName        = "clock_error_loss.png"
	ClockUncertaintyName = "clock_uncertainty.png"
)

// comparisonPoints is how many leading forecast values the comparison plot
// draws.
const comparisonPoints = 100

var (
	truthColor = color.RGBA{A: 255}
	palette    = []color.RGBA{
		{R: 31, G: 119, B: 180, A: 255},
		{R: 255, G: 127, B: 14, A: 255},
		{R: 44, G: 160, B: 44, A: 255},
		{R: 214, G: 39, B: 40, A: 255},
	}
)

func colorFor(i int) color.RGBA { return palette[i%len(palette)] }

func translucent(c color.RGBA, a uint8) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: a}
}

// ComparisonPNG draws the 2x2 model comparison of one dataset: leading
// forecasts against truth, error histograms, validation loss per epoch on a
// log scale, and RMSE/MAE bars.
func ComparisonPNG(dataset string, results []pipeline.Result) ([]byte, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results for %s", dataset)
	}

	preds := plot.New()
	preds.Title.Text = fmt.Sprintf("%s: first %d forecasts", dataset, comparisonPoints)
	preds.X.Label.Text = "step"
	preds.Y.Label.Text = "radial error (m)"
	truth := results[0].YTrue[:min(comparisonPoints, len(results[0].YTrue))]
	if err := addLine(preds, "actual", indexed(truth), truthColor); err != nil {
		return nil, err
	}

	hists := plot.New()
	hists.Title.Text = "Error distribution"
	hists.X.Label.Text = "error (m)"

	loss := plot.New()
	loss.Title.Text = "Validation loss"
	loss.X.Label.Text = "epoch"
	logScale, anyLoss := true, false

	names := make([]string, len(results))
	rmse := make(plotter.Values, len(results))
	mae := make(plotter.Values, len(results))

	for i, r := range results {
		name := r.Arch.DisplayName()
		names[i] = name
		rmse[i], mae[i] = zeroIfNaN(r.RMSE), zeroIfNaN(r.MAE)
		c := colorFor(i)

		if err := addLine(preds, name, indexed(r.YPred[:min(comparisonPoints, len(r.YPred))]), c); err != nil {
			return nil, err
		}

		if errs := finite(r.Errors()); spread(errs) {
			h, err := plotter.NewHist(plotter.Values(errs), 30)
			if err != nil {
				return nil, err
			}
			h.FillColor = translucent(c, 110)
			h.LineStyle.Width = 0
			hists.Add(h)
			hists.Legend.Add(name, h)
		}

		curve := r.History.ValLoss
		if len(curve) == 0 {
			curve = r.History.TrainLoss
		}
		anyLoss = anyLoss || len(curve) > 0
		for _, v := range curve {
			if !(v > 0) {
				logScale = false
			}
		}
		if err := addLine(loss, name, epochs(curve), c); err != nil {
			return nil, err
		}
	}
	if logScale && anyLoss {
		loss.Y.Scale = plot.LogScale{}
		loss.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	bars := plot.New()
	bars.Title.Text = "Test metrics"
	bars.Y.Label.Text = "m"
	w := vg.Points(14)
	rb, err := plotter.NewBarChart(rmse, w)
	if err != nil {
		return nil, err
	}
	rb.Color = colorFor(0)
	rb.LineStyle.Width = 0
	rb.Offset = -w / 2
	mb, err := plotter.NewBarChart(mae, w)
	if err != nil {
		return nil, err
	}
	mb.Color = colorFor(1)
	mb.LineStyle.Width = 0
	mb.Offset = w / 2
	bars.Add(rb, mb)
	bars.Legend.Add("RMSE", rb)
	bars.Legend.Add("MAE", mb)
	bars.Legend.Top = true
	bars.NominalX(names...)

	for _, p := range []*plot.Plot{preds, hists, loss} {
		p.Add(plotter.NewGrid())
		p.Legend.Top = true
	}
	return render([][]*plot.Plot{{preds, hists}, {loss, bars}}, 14*vg.Inch, 10*vg.Inch)
}

// ResidualsPNG draws the residual diagnostics of one result: histogram with
// the fitted normal density, normal Q-Q plot, and residuals against
// predictions.
func ResidualsPNG(r pipeline.Result) ([]byte, error) {
	res, err := diagnostics.Residuals(r.YTrue, r.YPred)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("%s %s", r.Arch.DisplayName(), r.Dataset)

	hist := plot.New()
	hist.Title.Text = title + ": residuals"
	hist.X.Label.Text = "residual (m)"
	hist.Y.Label.Text = "density"
	if fr := finite(res); spread(fr) {
		h, err := plotter.NewHist(plotter.Values(fr), 40)
		if err != nil {
			return nil, err
		}
		h.Normalize(1)
		h.FillColor = translucent(colorFor(0), 140)
		hist.Add(h)
		if sd := r.Residuals.Std; sd > 0 {
			n := distuv.Normal{Mu: r.Residuals.Mean, Sigma: sd}
			pdf := plotter.NewFunction(n.Prob)
			pdf.Color = colorFor(3)
			pdf.Width = vg.Points(1.5)
			hist.Add(pdf)
			hist.Legend.Add("normal fit", pdf)
		}
	}

	qq := plot.New()
	qq.Title.Text = "Normal Q-Q"
	qq.X.Label.Text = "theoretical quantile"
	qq.Y.Label.Text = "ordered residual (m)"
	q := diagnostics.QQPoints(res)
	if len(q.Ordered) > 0 {
		xys := make(plotter.XYs, len(q.Ordered))
		for i := range xys {
			xys[i] = plotter.XY{X: q.Theoretical[i], Y: q.Ordered[i]}
		}
		if err := addScatter(qq, "", xys, colorFor(0)); err != nil {
			return nil, err
		}
		ref := plotter.NewFunction(func(x float64) float64 { return q.Intercept + q.Slope*x })
		ref.Color = colorFor(3)
		qq.Add(ref)
	}

	vsPred := plot.New()
	vsPred.Title.Text = "Residuals vs predicted"
	vsPred.X.Label.Text = "predicted (m)"
	vsPred.Y.Label.Text = "residual (m)"
	xys := make(plotter.XYs, 0, len(res))
	for i, v := range res {
		if isFinite(v) && isFinite(r.YPred[i]) {
			xys = append(xys, plotter.XY{X: r.YPred[i], Y: v})
		}
	}
	if len(xys) > 0 {
		if err := addScatter(vsPred, "", xys, colorFor(0)); err != nil {
			return nil, err
		}
		zero := plotter.NewFunction(func(float64) float64 { return 0 })
		zero.Color = colorFor(3)
		zero.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		vsPred.Add(zero)
	}

	for _, p := range []*plot.Plot{hist, qq, vsPred} {
		p.Add(plotter.NewGrid())
	}
	return render([][]*plot.Plot{{hist, qq, vsPred}}, 18*vg.Inch, 5*vg.Inch)
}

// ClockPredictionPNG draws actual and predicted clock error over time.
func ClockPredictionPNG(r pipeline.ClockResult) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s satellite clock error forecast", r.Dataset)
	p.Y.Label.Text = "clock error (m)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04"}
	if err := addLine(p, "actual", timed(r, r.YTrue), truthColor); err != nil {
		return nil, err
	}
	if err := addLine(p, "predicted", timed(r, r.YPred), colorFor(0)); err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return render([][]*plot.Plot{{p}}, 12*vg.Inch, 5*vg.Inch)
}

// LossPNG draws training and validation loss per epoch.
func LossPNG(title string, h predictor.History) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	if err := addLine(p, "train", epochs(h.TrainLoss), colorFor(0)); err != nil {
		return nil, err
	}
	if len(h.ValLoss) > 0 {
		if err := addLine(p, "validation", epochs(h.ValLoss), colorFor(1)); err != nil {
			return nil, err
		}
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return render([][]*plot.Plot{{p}}, 8*vg.Inch, 5*vg.Inch)
}

// ClockUncertaintyPNG draws the Monte-Carlo mean forecast with a two
// standard deviation band around it.
func ClockUncertaintyPNG(r pipeline.ClockResult) ([]byte, error) {
	u := r.Uncertainty
	if u == nil || len(u.Mean) == 0 {
		return nil, fmt.Errorf("no uncertainty estimate for %s", r.Dataset)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s clock error, MC dropout (%d passes, mean std %.4f m)", r.Dataset, u.Iterations, u.MeanStd)
	p.Y.Label.Text = "clock error (m)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04"}

	n := min(len(u.Mean), len(u.Std), len(r.Times))
	band := make(plotter.XYs, 0, 2*n)
	for i := range n {
		band = append(band, plotter.XY{X: unix(r, i), Y: u.Mean[i] + 2*u.Std[i]})
	}
	for i := n - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: unix(r, i), Y: u.Mean[i] - 2*u.Std[i]})
	}
	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return nil, err
	}
	poly.Color = translucent(colorFor(0), 60)
	poly.LineStyle.Width = 0
	p.Add(poly)
	p.Legend.Add("±2σ", poly)

	if err := addLine(p, "actual", timed(r, r.YTrue), truthColor); err != nil {
		return nil, err
	}
	if err := addLine(p, "MC mean", timed(r, u.Mean), colorFor(0)); err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return render([][]*plot.Plot{{p}}, 12*vg.Inch, 5*vg.Inch)
}

// render lays plots out on a grid and encodes the canvas as PNG.
func render(plots [][]*plot.Plot, width, height vg.Length) ([]byte, error) {
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 6,
		PadY:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 3,
		PadBottom: vg.Millimeter * 3,
		PadLeft:   vg.Millimeter * 3,
		PadRight:  vg.Millimeter * 3,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i, row := range plots {
		for j, p := range row {
			p.Draw(canvases[i][j])
		}
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func addLine(p *plot.Plot, name string, xys plotter.XYs, c color.Color) error {
	if len(xys) == 0 {
		return nil
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("%s line: %w", name, err)
	}
	l.Color = c
	l.Width = vg.Points(1.2)
	p.Add(l)
	if name != "" {
		p.Legend.Add(name, l)
	}
	return nil
}

func addScatter(p *plot.Plot, name string, xys plotter.XYs, c color.Color) error {
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("%s scatter: %w", name, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(1.5)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)
	if name != "" {
		p.Legend.Add(name, s)
	}
	return nil
}

// indexed pairs values with their position; non-finite values are skipped.
func indexed(v []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(v))
	for i, y := range v {
		if isFinite(y) {
			xys = append(xys, plotter.XY{X: float64(i), Y: y})
		}
	}
	return xys
}

// epochs pairs per-epoch values with 1-based epoch numbers.
func epochs(v []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(v))
	for i, y := range v {
		if isFinite(y) {
			xys = append(xys, plotter.XY{X: float64(i + 1), Y: y})
		}
	}
	return xys
}

func timed(r pipeline.ClockResult, v []float64) plotter.XYs {
	n := min(len(v), len(r.Times))
	xys := make(plotter.XYs, 0, n)
	for i := range n {
		if isFinite(v[i]) {
			xys = append(xys, plotter.XY{X: unix(r, i), Y: v[i]})
		}
	}
	return xys
}

func unix(r pipeline.ClockResult, i int) float64 {
	return float64(r.Times[i].Unix())
}

func finite(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if isFinite(x) {
			out = append(out, x)
		}
	}
	return out
}

// spread reports whether v has at least two distinct values, which a
// histogram needs for a non-degenerate bin width.
func spread(v []float64) bool {
	return len(v) > 1 && floats.Max(v) > floats.Min(v)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func zeroIfNaN(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return 0
}

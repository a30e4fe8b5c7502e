// Package plot renders sweep results as interactive HTML heat maps.
package plot

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/zephyrtronium/lcong/stattest"
	"github.com/zephyrtronium/lcong/store"
)

// Passes returns the number of statistical tests and the number of spectral
// dimensions that r passed.
func Passes(r *store.Record) (stat, spectral int) {
	for _, ok := range r.Stats {
		if ok {
			stat++
		}
	}
	for _, d := range r.Spectral {
		if d.Pass {
			spectral++
		}
	}
	return stat, spectral
}

// Axis names the generator parameter held fixed in a plot.
type Axis string

const (
	AxisA Axis = "a"
	AxisC Axis = "c"
	AxisM Axis = "m"
)

// ParseAxis parses an axis name.
func ParseAxis(s string) (Axis, error) {
	switch Axis(s) {
	case AxisA, AxisC, AxisM:
		return Axis(s), nil
	default:
		return "", fmt.Errorf("unknown axis %q, must be one of a, c, m", s)
	}
}

// free returns the names of the parameters which vary along the plot's x
// and y axes and accessors for them.
func (a Axis) free() (x, y string, fx, fy, fixed func(store.Key) uint64) {
	pa := func(k store.Key) uint64 { return k.A }
	pc := func(k store.Key) uint64 { return k.C }
	pm := func(k store.Key) uint64 { return k.M }
	switch a {
	case AxisA:
		return "c", "m", pc, pm, pa
	case AxisC:
		return "a", "m", pa, pm, pc
	case AxisM:
		return "a", "c", pa, pc, pm
	}
	panic("plot: invalid axis " + string(a))
}

// Cell is the result for one point of a grid.
type Cell struct {
	X, Y     uint64
	Stat     int
	Spectral int
}

// Grid is a set of results with one parameter held fixed.
type Grid struct {
	Axis  Axis
	Value uint64
	// XName and YName are the names of the varying parameters.
	XName, YName string
	// Xs and Ys are the distinct parameter values in increasing order.
	Xs, Ys []uint64
	Cells  []Cell
	// MaxSpectral is the largest number of spectral dimensions tested.
	MaxSpectral int
}

// NewGrid collects the records whose parameter on axis equals value.
// If several records share the same point, the last one wins.
func NewGrid(recs []*store.Record, axis Axis, value uint64) *Grid {
	xn, yn, fx, fy, fixed := axis.free()
	g := &Grid{Axis: axis, Value: value, XName: xn, YName: yn}
	type point struct{ x, y uint64 }
	cells := make(map[point]Cell)
	for _, r := range recs {
		if fixed(r.Key) != value {
			continue
		}
		p := point{fx(r.Key), fy(r.Key)}
		c := Cell{X: p.x, Y: p.y}
		c.Stat, c.Spectral = Passes(r)
		cells[p] = c
		g.MaxSpectral = max(g.MaxSpectral, len(r.Spectral))
	}
	for _, c := range cells {
		g.Xs = append(g.Xs, c.X)
		g.Ys = append(g.Ys, c.Y)
		g.Cells = append(g.Cells, c)
	}
	slices.Sort(g.Xs)
	g.Xs = slices.Compact(g.Xs)
	slices.Sort(g.Ys)
	g.Ys = slices.Compact(g.Ys)
	slices.SortFunc(g.Cells, func(a, b Cell) int {
		return cmp.Or(cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
	})
	return g
}

// Render writes an HTML page with heat maps of statistical passes, spectral
// passes, and spectral passes of generators that passed every statistical
// test.
func Render(w io.Writer, g *Grid) error {
	title := fmt.Sprintf("%s fixed to %d, %s and %s change", g.Axis, g.Value, g.XName, g.YName)
	page := components.NewPage().SetPageTitle("LCG results: " + title)
	stat := heat(g, "Statistical test results", title, len(stattest.Names), func(c Cell) (int, bool) {
		return c.Stat, true
	})
	spec := heat(g, "Spectral test results", title, g.MaxSpectral, func(c Cell) (int, bool) {
		return c.Spectral, true
	})
	both := heat(g, "Spectral test results of statistically passing generators", title, g.MaxSpectral, func(c Cell) (int, bool) {
		return c.Spectral, c.Stat == len(stattest.Names)
	})
	page.AddCharts(stat, spec, both)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("couldn't render plot: %w", err)
	}
	return nil
}

func heat(g *Grid, name, subtitle string, most int, val func(Cell) (int, bool)) *charts.HeatMap {
	xi := index(g.Xs)
	yi := index(g.Ys)
	data := make([]opts.HeatMapData, 0, len(g.Cells))
	for _, c := range g.Cells {
		v, ok := val(c)
		if !ok {
			continue
		}
		data = append(data, opts.HeatMapData{Value: [3]any{xi[c.X], yi[c.Y], v}})
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: name, Width: "1000px", Height: "700px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: g.XName, Type: "category", Data: labels(g.Xs)}),
		charts.WithYAxisOpts(opts.YAxis{Name: g.YName, Type: "category", Data: labels(g.Ys)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Type:       "continuous",
			Min:        0,
			Max:        float32(most),
			Calculable: opts.Bool(true),
			Left:       "right",
			Top:        "middle",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#21918c", "#fde725"}},
		}),
	)
	hm.AddSeries("passes", data)
	return hm
}

func index(vals []uint64) map[uint64]int {
	m := make(map[uint64]int, len(vals))
	for i, v := range vals {
		m[v] = i
	}
	return m
}

func labels(vals []uint64) []string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = strconv.FormatUint(v, 10)
	}
	return s
}

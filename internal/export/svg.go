// Package export renders stored runs into standalone documents.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/pidloop/internal/dynamo"
)

const (
	background  = "#0a0a0a"
	gridColor   = "#333333"
	labelColor  = "#aaaaaa"
	margin      = 48.0
	panelGap    = 24.0
	strokeWidth = 1.5
)

// Series is one polyline in a panel.
type Series struct {
	Name   string
	Color  string
	Values []float64
}

type panel struct {
	title  string
	series []Series
}

// RunToSVG draws a run as two stacked panels sharing the time axis: setpoint
// and feedback on top, the controller's correction below. feedback is the
// state index the loop measures. It returns "" for runs with fewer than two
// samples.
func RunToSVG(result *dynamo.Result, feedback, width, height int) string {
	if result == nil || len(result.Times) < 2 {
		return ""
	}

	tracking := panel{title: "tracking"}
	if len(result.References) == len(result.Times) {
		tracking.series = append(tracking.series, Series{Name: "setpoint", Color: "#ffcc00", Values: result.References})
	}
	tracking.series = append(tracking.series, Series{Name: "feedback", Color: "#00ff88", Values: result.Series(feedback)})

	panels := []panel{tracking}
	if len(result.Controls) > 0 {
		panels = append(panels, panel{
			title:  "correction",
			series: []Series{{Name: "output", Color: "#ff4fd8", Values: result.ControlSeries(0)}},
		})
	}

	return render(result.Times, panels, width, height)
}

func render(times []float64, panels []panel, width, height int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="monospace" font-size="11">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)

	plotW := float64(width) - 2*margin
	panelH := (float64(height) - 2*margin - panelGap*float64(len(panels)-1)) / float64(len(panels))

	t0, t1 := times[0], times[len(times)-1]
	for i, p := range panels {
		top := margin + float64(i)*(panelH+panelGap)
		writePanel(&sb, times, t0, t1, p, margin, top, plotW, panelH)
	}

	fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" fill="%s">t=%.2fs</text>
<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">t=%.2fs</text>
`, margin, float64(height)-margin/2, labelColor, t0,
		margin+plotW, float64(height)-margin/2, labelColor, t1)

	sb.WriteString("</svg>\n")
	return sb.String()
}

func bounds(series []Series) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 1
	}
	if hi == lo {
		hi, lo = hi+0.5, lo-0.5
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func writePanel(sb *strings.Builder, times []float64, t0, t1 float64, p panel, x, y, w, h float64) {
	lo, hi := bounds(p.series)
	span := t1 - t0
	if span == 0 {
		span = 1
	}

	fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s"/>
<text x="%.1f" y="%.1f" fill="%s">%s</text>
<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">%.3g</text>
<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">%.3g</text>
`, x, y, w, h, gridColor,
		x, y-6, labelColor, p.title,
		x-4, y+10, labelColor, hi,
		x-4, y+h, labelColor, lo)

	if lo < 0 && hi > 0 {
		zy := y + h - (0-lo)/(hi-lo)*h
		fmt.Fprintf(sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-dasharray="4 4"/>
`, x, zy, x+w, zy, gridColor)
	}

	legendX := x + w
	for i := len(p.series) - 1; i >= 0; i-- {
		s := p.series[i]
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">%s</text>
`, legendX, y-6, s.Color, s.Name)
		legendX -= float64(len(s.Name)+2) * 7

		n := min(len(s.Values), len(times))
		if n < 2 {
			continue
		}

		fmt.Fprintf(sb, `<polyline fill="none" stroke="%s" stroke-width="%.1f" points="`, s.Color, strokeWidth)
		for j := 0; j < n; j++ {
			v := s.Values[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			px := x + (times[j]-t0)/span*w
			py := y + h - (v-lo)/(hi-lo)*h
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(sb, "%.1f,%.1f", px, py)
		}
		sb.WriteString("\"/>\n")
	}
}

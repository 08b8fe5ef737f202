package analysis

import (
	"math"
	"strconv"
	"strings"
)

// Pie chart geometry in SVG user units. Renderers use a 200x200 viewBox.
const (
	PieCenterX = 100.0
	PieCenterY = 100.0
	PieRadius  = 60.0
)

// PieSegment is one wedge of the expense pie chart. Angles are in degrees and
// cumulative: a segment starts where the previous one ended.
type PieSegment struct {
	Path       string  `json:"path"`
	Color      string  `json:"color"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
}

// Span returns the angle covered by the segment.
func (s PieSegment) Span() float64 {
	return s.EndAngle - s.StartAngle
}

// PieSegments converts a breakdown into wedges, in breakdown order, starting
// at 0 degrees. Each wedge covers percentage/100*360 degrees.
func PieSegments(breakdown []BreakdownEntry) []PieSegment {
	if len(breakdown) == 0 {
		return []PieSegment{}
	}

	segments := make([]PieSegment, 0, len(breakdown))
	current := 0.0
	for _, entry := range breakdown {
		span := entry.Percentage / 100 * 360
		start, end := current, current+span

		x1, y1 := pointAt(start)
		x2, y2 := pointAt(end)
		largeArc := 0
		if span > 180 {
			largeArc = 1
		}

		segments = append(segments, PieSegment{
			Path:       wedgePath(x1, y1, x2, y2, largeArc),
			Color:      entry.Color,
			StartAngle: start,
			EndAngle:   end,
		})
		current = end
	}
	return segments
}

func pointAt(deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	return PieCenterX + PieRadius*math.Cos(rad), PieCenterY + PieRadius*math.Sin(rad)
}

// wedgePath draws center -> start point -> clockwise arc -> close.
func wedgePath(x1, y1, x2, y2 float64, largeArc int) string {
	var b strings.Builder
	b.WriteString("M ")
	b.WriteString(num(PieCenterX))
	b.WriteByte(' ')
	b.WriteString(num(PieCenterY))
	b.WriteString(" L ")
	b.WriteString(num(x1))
	b.WriteByte(' ')
	b.WriteString(num(y1))
	b.WriteString(" A ")
	b.WriteString(num(PieRadius))
	b.WriteByte(' ')
	b.WriteString(num(PieRadius))
	b.WriteString(" 0 ")
	b.WriteString(strconv.Itoa(largeArc))
	b.WriteString(" 1 ")
	b.WriteString(num(x2))
	b.WriteByte(' ')
	b.WriteString(num(y2))
	b.WriteString(" Z")
	return b.String()
}

// num prints the shortest representation that round-trips.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package render

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/inamate/inkboard/internal/geom"
	"github.com/inamate/inkboard/internal/scene"
)

var ErrNotMounted = errors.New("surface not mounted")

const (
	background = "#ffffff"
	gridStroke = "#e5e7eb"
)

// Markup renders the scene as a standalone SVG document: explicit width,
// height and viewBox, no external references. Selection highlights and
// the in-progress draw preview are not part of the output.
func Markup(in Input) (string, error) {
	if !in.Surface.Mounted() {
		return "", ErrNotMounted
	}

	w := geom.FormatFloat(in.Surface.Width)
	h := geom.FormatFloat(in.Surface.Height)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`, w, h, w, h)
	b.WriteString("\n")

	fmt.Fprintf(&b, `  <rect x="0" y="0" width="%s" height="%s" fill="%s"/>`+"\n", w, h, background)

	if in.ShowGrid {
		p := geom.FormatFloat(in.pitch())
		b.WriteString("  <defs>\n")
		fmt.Fprintf(&b, `    <pattern id="grid" width="%s" height="%s" patternUnits="userSpaceOnUse">`, p, p)
		fmt.Fprintf(&b, `<path d="M %s 0 L 0 0 0 %s" fill="none" stroke="%s" stroke-width="1"/></pattern>`+"\n", p, p, gridStroke)
		b.WriteString("  </defs>\n")
		fmt.Fprintf(&b, `  <rect x="0" y="0" width="%s" height="%s" fill="url(#grid)"/>`+"\n", w, h)
	}

	fmt.Fprintf(&b, `  <g transform="%s">`+"\n", in.Viewport.Matrix().SVG())
	for _, s := range in.Shapes {
		if elem := shapeElement(s); elem != "" {
			b.WriteString("    ")
			b.WriteString(elem)
			b.WriteString("\n")
		}
	}
	for _, a := range in.Annotations {
		b.WriteString("    ")
		b.WriteString(textElement(a))
		b.WriteString("\n")
	}
	b.WriteString("  </g>\n")

	b.WriteString(`</svg>`)
	return b.String(), nil
}

func shapeElement(s scene.Shape) string {
	stroke := paint(s.StrokeColor, "#000000")
	fill := paint(s.Fill, "none")
	width := geom.FormatFloat(s.StrokeWidth)

	switch s.Type {
	case scene.ShapeTypePath:
		if len(s.Points) == 0 {
			return ""
		}
		return fmt.Sprintf(`<path id="%s" d="%s" stroke="%s" stroke-width="%s" fill="%s" stroke-linecap="round" stroke-linejoin="round"/>`,
			attr(s.ID), s.PathData(), stroke, width, fill)

	case scene.ShapeTypeRect:
		r := s.Bounds()
		return fmt.Sprintf(`<rect id="%s" x="%s" y="%s" width="%s" height="%s" stroke="%s" stroke-width="%s" fill="%s"/>`,
			attr(s.ID), geom.FormatFloat(r.X), geom.FormatFloat(r.Y),
			geom.FormatFloat(r.Width), geom.FormatFloat(r.Height), stroke, width, fill)
	}

	return ""
}

func textElement(a scene.Annotation) string {
	return fmt.Sprintf(`<text id="%s" x="%s" y="%s" font-size="%s" fill="%s" font-family="sans-serif" dominant-baseline="hanging">%s</text>`,
		attr(a.ID), geom.FormatFloat(a.X), geom.FormatFloat(a.Y),
		geom.FormatFloat(a.FontSize), paint(a.Color, scene.DefaultAnnotationColor), attr(a.Text))
}

// paint returns an escaped paint value. Anything that could reference
// another resource falls back to def.
func paint(v, def string) string {
	if v == "" || strings.Contains(strings.ToLower(v), "url(") {
		v = def
	}
	return attr(v)
}

func attr(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

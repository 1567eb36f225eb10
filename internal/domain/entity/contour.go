package entity

import (
	"image"
	"math"
)

// Contour замкнутый контур в пиксельных координатах.
type Contour struct {
	Points []image.Point
}

// Area площадь, ограниченная контуром.
func (c Contour) Area() float64 {
	return PolygonArea(c.floatPoints())
}

// Perimeter длина замкнутого контура.
func (c Contour) Perimeter() float64 {
	n := len(c.Points)
	if n < 2 {
		return 0
	}
	var l float64
	for i := 0; i < n; i++ {
		a, b := c.Points[i], c.Points[(i+1)%n]
		l += math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
	}
	return l
}

// Bounds ограничивающий прямоугольник, включая крайние пиксели.
func (c Contour) Bounds() image.Rectangle {
	if len(c.Points) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c.Points[0], Max: c.Points[0]}
	for _, p := range c.Points[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

func (c Contour) floatPoints() []Point {
	pts := make([]Point, len(c.Points))
	for i, p := range c.Points {
		pts[i] = Pt(float64(p.X), float64(p.Y))
	}
	return pts
}

// EdgeMap результат источника границ: объединённая карта и все контуры.
type EdgeMap struct {
	Edges    *image.Gray
	Contours []Contour
}

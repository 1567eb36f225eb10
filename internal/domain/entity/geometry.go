package entity

import (
	"image"
	"math"
)

// Point точка в координатах кадра.
type Point struct {
	X float64
	Y float64
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Quad четырёхугольник в каноническом порядке: TL, TR, BR, BL.
type Quad struct {
	TL Point
	TR Point
	BR Point
	BL Point
}

// OrderQuad упорядочивает вершины по экстремумам суммы и разности координат,
// результат не зависит от порядка входа.
func OrderQuad(pts [4]Point) Quad {
	var q Quad
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		s := p.X + p.Y
		d := p.Y - p.X
		if s < minSum {
			minSum, q.TL = s, p
		}
		if s > maxSum {
			maxSum, q.BR = s, p
		}
		if d < minDiff {
			minDiff, q.TR = d, p
		}
		if d > maxDiff {
			maxDiff, q.BL = d, p
		}
	}
	return q
}

// RectQuad четырёхугольник по осевому прямоугольнику.
func RectQuad(r image.Rectangle) Quad {
	return Quad{
		TL: Pt(float64(r.Min.X), float64(r.Min.Y)),
		TR: Pt(float64(r.Max.X), float64(r.Min.Y)),
		BR: Pt(float64(r.Max.X), float64(r.Max.Y)),
		BL: Pt(float64(r.Min.X), float64(r.Max.Y)),
	}
}

func (q Quad) Points() [4]Point {
	return [4]Point{q.TL, q.TR, q.BR, q.BL}
}

// Width средняя длина верхней и нижней сторон.
func (q Quad) Width() float64 {
	return (q.TR.Sub(q.TL).Norm() + q.BR.Sub(q.BL).Norm()) / 2
}

// Height средняя длина левой и правой сторон.
func (q Quad) Height() float64 {
	return (q.BL.Sub(q.TL).Norm() + q.BR.Sub(q.TR).Norm()) / 2
}

// AspectRatio отношение средней ширины к средней высоте, 0 для вырожденного.
func (q Quad) AspectRatio() float64 {
	h := q.Height()
	if h == 0 {
		return 0
	}
	return q.Width() / h
}

func (q Quad) Centroid() Point {
	pts := q.Points()
	var c Point
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Scale(0.25)
}

func (q Quad) Area() float64 {
	pts := q.Points()
	return PolygonArea(pts[:])
}

// Bounds осевой прямоугольник, покрывающий четырёхугольник.
func (q Quad) Bounds() image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q.Points() {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// Shrink сдвигает вершины к центру на долю factor расстояния,
// но не дальше capRatio средней высоты.
func (q Quad) Shrink(factor, capRatio float64) Quad {
	c := q.Centroid()
	maxMove := capRatio * q.Height()
	move := func(p Point) Point {
		step := c.Sub(p).Scale(factor)
		if n := step.Norm(); n > maxMove && n > 0 {
			step = step.Scale(maxMove / n)
		}
		return p.Add(step)
	}
	return Quad{TL: move(q.TL), TR: move(q.TR), BR: move(q.BR), BL: move(q.BL)}
}

// IoU пересечение над объединением двух выпуклых четырёхугольников.
func (q Quad) IoU(other Quad) float64 {
	a := q.Points()
	b := other.Points()
	return PolygonIoU(a[:], b[:])
}

// PolygonArea площадь многоугольника по формуле шнурования.
func PolygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var s float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s) / 2
}

// PolygonIoU для выпуклых многоугольников (отсечение Сазерленда — Ходжмана).
func PolygonIoU(a, b []Point) float64 {
	areaA, areaB := PolygonArea(a), PolygonArea(b)
	if areaA == 0 || areaB == 0 {
		return 0
	}
	inter := PolygonArea(clipConvex(a, b))
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clipConvex(subject, clip []Point) []Point {
	clip = counterClockwise(clip)
	out := counterClockwise(subject)
	for i := range clip {
		if len(out) == 0 {
			return nil
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := out
		out = nil
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn, prevIn := cross(a, b, cur) >= 0, cross(a, b, prev) >= 0
			if curIn {
				if !prevIn {
					out = append(out, intersect(prev, cur, a, b))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, intersect(prev, cur, a, b))
			}
		}
	}
	return out
}

func counterClockwise(pts []Point) []Point {
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	out := make([]Point, len(pts))
	copy(out, pts)
	if s < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func cross(a, b, p Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

func intersect(p1, p2, a, b Point) Point {
	d1 := cross(a, b, p1)
	d2 := cross(a, b, p2)
	t := d1 / (d1 - d2)
	return p1.Add(p2.Sub(p1).Scale(t))
}

package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"plate-reader/internal/domain/entity"
)

var ErrDegenerateQuad = errors.New("degenerate quadrilateral")

// PerspectiveWarper выпрямляет четырёхугольник перспективным преобразованием.
type PerspectiveWarper struct{}

func NewPerspectiveWarper() *PerspectiveWarper {
	return &PerspectiveWarper{}
}

// Warp строит кроп width×height; точки вне кадра заполняются чёрным.
func (w *PerspectiveWarper) Warp(src image.Image, quad entity.Quad, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid crop size %dx%d", width, height)
	}
	if quad.Area() < 1 {
		return nil, ErrDegenerateQuad
	}

	// Обратное отображение: прямоугольник результата -> четырёхугольник кадра.
	dst := [4]entity.Point{
		entity.Pt(0, 0),
		entity.Pt(float64(width-1), 0),
		entity.Pt(float64(width-1), float64(height-1)),
		entity.Pt(0, float64(height-1)),
	}
	h, err := homography(dst, quad.Points())
	if err != nil {
		return nil, err
	}

	frame := toNRGBA(src)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)
			den := h[6]*fx + h[7]*fy + 1
			if den == 0 {
				out.Pix[y*out.Stride+x*4+3] = 0xff
				continue
			}
			u := (h[0]*fx + h[1]*fy + h[2]) / den
			v := (h[3]*fx + h[4]*fy + h[5]) / den
			sampleBilinear(frame, u, v, out.Pix[y*out.Stride+x*4:y*out.Stride+x*4+4])
		}
	}
	return out, nil
}

// homography решает систему 8×8 для отображения from -> to (h33 = 1).
func homography(from, to [4]entity.Point) ([8]float64, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := from[i].X, from[i].Y
		u, v := to[i].X, to[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return [8]float64{}, fmt.Errorf("%w: %v", ErrDegenerateQuad, err)
	}
	var h [8]float64
	for i := range h {
		h[i] = sol.AtVec(i)
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return [8]float64{}, ErrDegenerateQuad
		}
	}
	return h, nil
}

func sampleBilinear(img *image.NRGBA, u, v float64, dst []uint8) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if u < 0 || v < 0 || u > float64(w-1) || v > float64(h-1) {
		dst[3] = 0xff
		return
	}
	x0, y0 := int(u), int(v)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := u-float64(x0), v-float64(y0)

	p00 := img.Pix[y0*img.Stride+x0*4:]
	p10 := img.Pix[y0*img.Stride+x1*4:]
	p01 := img.Pix[y1*img.Stride+x0*4:]
	p11 := img.Pix[y1*img.Stride+x1*4:]
	for c := 0; c < 4; c++ {
		top := float64(p00[c])*(1-fx) + float64(p10[c])*fx
		bottom := float64(p01[c])*(1-fx) + float64(p11[c])*fx
		dst[c] = uint8(top*(1-fy) + bottom*fy + 0.5)
	}
}

// scoringSize размер кропа для оценки кандидата в зависимости от пропорций.
func scoringSize(ratio float64) (int, int) {
	switch {
	case ratio > 4:
		return 520, 110
	case ratio > 2.5:
		return 400, 130
	case ratio < 1.5:
		return 200, 160
	default:
		return 300, 150
	}
}

package vision

import (
	"image"
	"image/color"
	"image/draw"

	"plate-reader/internal/domain/entity"
)

var colorWhite = color.Gray{Y: 255}

func fillGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(g, g.Bounds(), &image.Uniform{C: color.Gray{Y: v}}, image.Point{}, draw.Src)
	return g
}

func fillRect(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// plateCrop светлый номер 400×130 с n тёмными символами 20×60 с шагом 50.
func plateCrop(n int) *image.Gray {
	g := fillGray(400, 130, 230)
	for i := 0; i < n; i++ {
		x := 30 + 50*i
		fillRect(g, image.Rect(x, 35, x+20, 95), color.Gray{Y: 20})
	}
	return g
}

// rectContour контур прямоугольника по часовой стрелке с точками через step пикселей.
func rectContour(x0, y0, x1, y1, step int) entity.Contour {
	var pts []image.Point
	for x := x0; x < x1; x += step {
		pts = append(pts, image.Pt(x, y0))
	}
	for y := y0; y < y1; y += step {
		pts = append(pts, image.Pt(x1, y))
	}
	for x := x1; x > x0; x -= step {
		pts = append(pts, image.Pt(x, y1))
	}
	for y := y1; y > y0; y -= step {
		pts = append(pts, image.Pt(x0, y))
	}
	return entity.Contour{Points: pts}
}

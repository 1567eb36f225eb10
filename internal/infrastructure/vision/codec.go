package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"plate-reader/internal/domain/entity"
)

var ErrEmptyImage = errors.New("empty image")

// DecodeFrame декодирует снимок с учётом EXIF-ориентации в NRGBA.
func DecodeFrame(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	frame := toNRGBA(img)
	if frame.Rect.Empty() {
		return nil, ErrEmptyImage
	}
	return frame, nil
}

// EncodeJPEG кодирует изображение в JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG кодирует изображение в PNG (для бинарных масок).
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Annotate рисует контур четырёхугольника поверх копии кадра.
func Annotate(frame image.Image, quad entity.Quad, c color.Color, thickness int) *image.NRGBA {
	out := imaging.Clone(frame)
	offset := frame.Bounds().Min
	pts := quad.Points()
	for i := range pts {
		a := pts[i].Sub(entity.Pt(float64(offset.X), float64(offset.Y)))
		b := pts[(i+1)%len(pts)].Sub(entity.Pt(float64(offset.X), float64(offset.Y)))
		drawLine(out, a, b, c, thickness)
	}
	return out
}

func drawLine(img *image.NRGBA, a, b entity.Point, c color.Color, thickness int) {
	steps := int(b.Sub(a).Norm()*2) + 1
	half := thickness / 2
	for i := 0; i <= steps; i++ {
		p := a.Add(b.Sub(a).Scale(float64(i) / float64(steps)))
		x, y := int(p.X+0.5), int(p.Y+0.5)
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				img.Set(x+dx, y+dy, c)
			}
		}
	}
}

// Codec реализует port.FrameCodec поверх функций пакета.
type Codec struct {
	Outline   color.Color
	Thickness int
}

func NewCodec() *Codec {
	return &Codec{Outline: color.NRGBA{R: 0, G: 220, B: 0, A: 255}, Thickness: 3}
}

func (c *Codec) Decode(data []byte) (image.Image, error) {
	return DecodeFrame(data)
}

func (c *Codec) EncodeJPEG(img image.Image) ([]byte, error) {
	return EncodeJPEG(img)
}

func (c *Codec) EncodePNG(img image.Image) ([]byte, error) {
	return EncodePNG(img)
}

func (c *Codec) Annotate(frame image.Image, quad entity.Quad) image.Image {
	return Annotate(frame, quad, c.Outline, c.Thickness)
}

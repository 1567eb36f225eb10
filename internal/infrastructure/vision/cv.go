//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"plate-reader/internal/domain/entity"
)

// applyRecipe гауссово сглаживание -> top-hat/black-hat -> порог Оцу.
func applyRecipe(gray *image.Gray, r Recipe) (*image.Gray, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("gray to mat: %w", err)
	}
	defer src.Close()

	blur := gocv.NewMat()
	defer blur.Close()
	if r.Sigma > 0 {
		gocv.GaussianBlur(src, &blur, image.Point{}, r.Sigma, r.Sigma, gocv.BorderDefault)
	} else {
		src.CopyTo(&blur)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(r.KernelW, r.KernelH))
	defer kernel.Close()

	op := gocv.MorphBlackhat
	if r.Polarity == LightText {
		op = gocv.MorphTophat
	}
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	gocv.MorphologyEx(blur, &enhanced, op, kernel)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(enhanced, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	return matToGray(bin)
}

// openBinary морфологическое открытие k×k, убирает точечный шум.
func openBinary(bin *image.Gray, k int) (*image.Gray, error) {
	src, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return nil, fmt.Errorf("gray to mat: %w", err)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MorphologyEx(src, &dst, gocv.MorphOpen, kernel)

	return matToGray(dst)
}

// externalBlobs внешние контуры бинарного изображения с площадью и площадью оболочки.
func externalBlobs(bin *image.Gray) ([]blob, error) {
	if bin.Rect.Empty() {
		return nil, nil
	}
	src, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return nil, fmt.Errorf("gray to mat: %w", err)
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	blobs := make([]blob, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)

		hull := gocv.NewMat()
		gocv.ConvexHull(c, &hull, false, true)
		hullPts := gocv.NewPointVectorFromMat(hull)
		hullArea := gocv.ContourArea(hullPts)
		hullPts.Close()
		hull.Close()

		box := gocv.BoundingRect(c)
		area := gocv.ContourArea(c)
		if area == 0 {
			// вырожденный контур в один пиксель толщиной
			area = float64(box.Dx() * box.Dy())
			hullArea = area
		}
		blobs = append(blobs, blob{Box: box, Area: area, HullArea: hullArea})
	}
	return blobs, nil
}

// approxQuad приближает замкнутый контур многоугольником с допуском eps.
func approxQuad(pts []image.Point, eps float64) ([]image.Point, error) {
	if len(pts) < 3 {
		return nil, errTooFewPoints
	}
	curve := gocv.NewPointVectorFromPoints(pts)
	defer curve.Close()

	approx := gocv.ApproxPolyDP(curve, eps, true)
	defer approx.Close()
	return approx.ToPoints(), nil
}

// minAreaRect повёрнутый прямоугольник минимальной площади вокруг точек.
func minAreaRect(pts []image.Point) ([4]entity.Point, error) {
	if len(pts) < 3 {
		return [4]entity.Point{}, errTooFewPoints
	}
	pv := gocv.NewPointVectorFromPoints(pts)
	defer pv.Close()

	rect := gocv.MinAreaRect(pv)
	if len(rect.Points) != 4 || rect.Width == 0 || rect.Height == 0 {
		return [4]entity.Point{}, errTooFewPoints
	}
	var out [4]entity.Point
	for i, p := range rect.Points {
		out[i] = entity.Pt(float64(p.X), float64(p.Y))
	}
	return out, nil
}

// hsvCounts число пикселей кропа и его верхней половины, попавших в полосы HSV.
func hsvCounts(crop image.Image, bands []hsvBand) (all, upper int, err error) {
	mat, err := imageToMat(crop)
	if err != nil {
		return 0, 0, err
	}
	defer mat.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.Zeros(hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	band := gocv.NewMat()
	defer band.Close()
	for _, b := range bands {
		lower := gocv.NewScalar(float64(b.HMin), float64(b.SMin), float64(b.VMin), 0)
		higher := gocv.NewScalar(float64(b.HMax), 255, 255, 0)
		gocv.InRangeWithScalar(hsv, lower, higher, &band)
		gocv.BitwiseOr(mask, band, &mask)
	}

	all = gocv.CountNonZero(mask)
	if h := mask.Rows() / 2; h > 0 {
		top := mask.Region(image.Rect(0, 0, mask.Cols(), h))
		upper = gocv.CountNonZero(top)
		top.Close()
	}
	return all, upper, nil
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return toGray(img), nil
}

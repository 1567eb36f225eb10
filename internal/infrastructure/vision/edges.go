//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"plate-reader/config"
	"plate-reader/internal/domain/entity"
)

// GoCVEdgeSource серый -> CLAHE -> гауссово размытие -> Canny по каждому пресету.
// Карты границ объединяются, контуры всех пресетов складываются.
type GoCVEdgeSource struct {
	Presets   []config.CannyPreset
	ClipLimit float64
	TileGrid  image.Point
	BlurSize  image.Point
}

// NewGoCVEdgeSource создаёт источник границ на OpenCV.
func NewGoCVEdgeSource(presets []config.CannyPreset) *GoCVEdgeSource {
	return &GoCVEdgeSource{
		Presets:   presets,
		ClipLimit: 2.0,
		TileGrid:  image.Pt(8, 8),
		BlurSize:  image.Pt(5, 5),
	}
}

// Detect строит карту границ кадра и извлекает контуры (полная иерархия).
func (s *GoCVEdgeSource) Detect(ctx context.Context, frame image.Image) (*entity.EdgeMap, error) {
	_ = ctx
	mat, err := imageToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	clahe := gocv.NewCLAHEWithParams(s.ClipLimit, s.TileGrid)
	defer clahe.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(gray, &equalized)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(equalized, &blur, s.BlurSize, 0, 0, gocv.BorderDefault)

	union := gocv.NewMatWithSize(blur.Rows(), blur.Cols(), gocv.MatTypeCV8U)
	defer union.Close()

	var contours []entity.Contour
	for _, p := range s.Presets {
		edges := gocv.NewMat()
		gocv.Canny(blur, &edges, float32(p.Low), float32(p.High))
		gocv.BitwiseOr(union, edges, &union)

		found := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
		for i := 0; i < found.Size(); i++ {
			contours = append(contours, entity.Contour{Points: found.At(i).ToPoints()})
		}
		found.Close()
		edges.Close()
	}

	edgeImg, err := union.ToImage()
	if err != nil {
		return nil, fmt.Errorf("edge map to image: %w", err)
	}
	return &entity.EdgeMap{Edges: toGray(edgeImg), Contours: contours}, nil
}

// GoCVCascadeDetector вторичный детектор номеров на каскаде Хаара.
type GoCVCascadeDetector struct {
	classifier   gocv.CascadeClassifier
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
}

// NewGoCVCascadeDetector загружает каскад из файла.
func NewGoCVCascadeDetector(path string) (*GoCVCascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %q", path)
	}
	return &GoCVCascadeDetector{
		classifier:   classifier,
		ScaleFactor:  1.05,
		MinNeighbors: 3,
		MinSize:      image.Pt(40, 15),
	}, nil
}

// DetectRects ищет номера каскадом на сером кадре.
func (d *GoCVCascadeDetector) DetectRects(ctx context.Context, frame image.Image) ([]image.Rectangle, error) {
	_ = ctx
	mat, err := imageToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	return d.classifier.DetectMultiScaleWithParams(gray, d.ScaleFactor, d.MinNeighbors, 0, d.MinSize, image.Point{}), nil
}

func (d *GoCVCascadeDetector) Close() error {
	return d.classifier.Close()
}

// imageToMat превращает кадр в gocv.Mat (BGR).
func imageToMat(frame image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if err == nil {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to convert image")
}

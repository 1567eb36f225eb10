package vision

import (
	"image"
	"image/draw"
	"sort"

	xdraw "golang.org/x/image/draw"

	"plate-reader/internal/domain/entity"
)

// CharacterSegmenter выделяет до maxChars символов и нормализует их размер.
type CharacterSegmenter struct {
	rules    BlobRules
	maxChars int
	width    int
	height   int
}

func NewCharacterSegmenter(rules BlobRules) *CharacterSegmenter {
	return &CharacterSegmenter{rules: rules, maxChars: 7, width: 32, height: 64}
}

// Segment возвращает символы слева направо; пустой срез, если ничего не найдено.
func (s *CharacterSegmenter) Segment(binary *image.Gray) []entity.CharacterBlob {
	bin := toGray(binary)
	blobs := plausibleBlobs(bin, s.rules)
	if len(blobs) > s.maxChars {
		sort.SliceStable(blobs, func(i, j int) bool { return blobs[i].Area > blobs[j].Area })
		blobs = blobs[:s.maxChars]
	}
	sort.SliceStable(blobs, func(i, j int) bool { return blobs[i].Box.Min.X < blobs[j].Box.Min.X })

	out := make([]entity.CharacterBlob, 0, len(blobs))
	for i, b := range blobs {
		norm := image.NewGray(image.Rect(0, 0, s.width, s.height))
		xdraw.NearestNeighbor.Scale(norm, norm.Bounds(), bin, b.Box, draw.Src, nil)
		out = append(out, entity.CharacterBlob{Box: b.Box, Image: norm, Order: i})
	}
	return out
}

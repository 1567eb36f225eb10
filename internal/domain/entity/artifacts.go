package entity

import "image"

// BinarizationVariant бинарное изображение кропа и его оценка.
type BinarizationVariant struct {
	RecipeID   string
	Image      *image.Gray
	JudgeScore float64
}

// CharacterBlob область одного символа, упорядоченная слева направо.
type CharacterBlob struct {
	Box   image.Rectangle
	Image *image.Gray
	Order int
}

// ColorStats доли синих и красных пикселей кропа.
type ColorStats struct {
	BlueRatio      float64 `json:"blue_ratio"`
	RedRatio       float64 `json:"red_ratio"`
	UpperBlueRatio float64 `json:"upper_blue_ratio"`
	UpperRedRatio  float64 `json:"upper_red_ratio"`
}

// OCRText ответ движка распознавания: текст и уверенность по символам (0..1).
type OCRText struct {
	Text        string
	Confidences []float64
}

package entity

// ProgressStep имя шага обработки для наблюдателя.
type ProgressStep string

const (
	StepStart           ProgressStep = "start"
	StepEdges           ProgressStep = "edges"
	StepCandidatesFound ProgressStep = "candidates_found"
	StepCandidate       ProgressStep = "candidate_attempt"
	StepPlateCrop       ProgressStep = "plate_crop"
	StepBinarization    ProgressStep = "binarization"
	StepCharacters      ProgressStep = "characters"
	StepOCRText         ProgressStep = "ocr_text"
	StepValidation      ProgressStep = "validation"
	StepCandidateChosen ProgressStep = "candidate_chosen"
	StepFallback        ProgressStep = "fallback_attempt"
	StepFinalResult     ProgressStep = "final_result"
	StepError           ProgressStep = "error"
)

// ProgressEvent одностороннее уведомление о ходе обработки.
// Payload — изображение, строка или структура.
type ProgressEvent struct {
	Step    ProgressStep
	Message string
	Payload any
}

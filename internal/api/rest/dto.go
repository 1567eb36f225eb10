package rest

import (
	"encoding/base64"
	"image"

	app "plate-reader/internal/application"
	"plate-reader/internal/domain/entity"
	"plate-reader/internal/infrastructure/vision"
)

type InterpretationResponse struct {
	Text   string             `json:"text"`
	Format entity.PlateFormat `json:"format"`
	Stage  string             `json:"stage"`
	Edits  int                `json:"edits"`
}

type CandidateResponse struct {
	Rank    int                    `json:"rank"`
	Quad    [4][2]float64          `json:"quad"`
	Source  entity.CandidateSource `json:"source"`
	Pattern entity.PlatePattern    `json:"pattern"`
	Ratio   float64                `json:"ratio"`
	Score   float64                `json:"score"`
	Scores  entity.ScoreBreakdown  `json:"scores"`
	Shrunk  bool                   `json:"shrunk,omitempty"`
}

type ReadingResponse struct {
	Status              entity.ReadingStatus      `json:"status"`
	Plate               string                    `json:"plate,omitempty"`
	Format              entity.PlateFormat        `json:"format,omitempty"`
	Confidence          float64                   `json:"confidence"`
	SourceCandidateRank int                       `json:"source_candidate_rank"`
	Interpretations     []InterpretationResponse  `json:"interpretations"`
	Colors              entity.ColorStats         `json:"colors"`
	Candidates          []CandidateResponse       `json:"candidates"`
	Attempts            []entity.CandidateAttempt `json:"attempts"`
	Record              *entity.ReadingRecord     `json:"record,omitempty"`
	Duplicate           bool                      `json:"duplicate,omitempty"`
	AnnotatedImage      string                    `json:"annotated_image,omitempty"`
}

type EventResponse struct {
	Step    entity.ProgressStep `json:"step"`
	Message string              `json:"message,omitempty"`
	Image   string              `json:"image,omitempty"`
	Data    any                 `json:"data,omitempty"`
}

func toInterpretations(result entity.ValidationResult) []InterpretationResponse {
	out := make([]InterpretationResponse, 0, len(result))
	for _, in := range result {
		out = append(out, InterpretationResponse{Text: in.Text, Format: in.Format, Stage: in.Stage.String(), Edits: in.Edits})
	}
	return out
}

func toCandidates(cands []entity.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(cands))
	for i, c := range cands {
		var quad [4][2]float64
		for j, p := range c.Quad.Points() {
			quad[j] = [2]float64{p.X, p.Y}
		}
		out = append(out, CandidateResponse{
			Rank:    i,
			Quad:    quad,
			Source:  c.Source,
			Pattern: c.Pattern,
			Ratio:   c.Ratio,
			Score:   c.Score,
			Scores:  c.Scores,
			Shrunk:  c.Shrunk,
		})
	}
	return out
}

func toReading(r *entity.PlateReading) ReadingResponse {
	attempts := r.Attempts
	if attempts == nil {
		attempts = []entity.CandidateAttempt{}
	}
	return ReadingResponse{
		Status:              r.Status,
		Plate:               r.Text,
		Format:              r.Format,
		Confidence:          r.Confidence,
		SourceCandidateRank: r.SourceCandidateRank,
		Interpretations:     toInterpretations(r.Interpretations),
		Colors:              r.Colors,
		Candidates:          toCandidates(r.Candidates),
		Attempts:            attempts,
	}
}

func toOutput(out *app.RecognitionOutput) ReadingResponse {
	resp := toReading(out.Reading)
	resp.Record = out.Record
	resp.Duplicate = out.Duplicate
	if out.Annotated != nil {
		resp.AnnotatedImage = base64.StdEncoding.EncodeToString(out.Annotated)
	}
	return resp
}

// toEvent переводит событие конвейера в сообщение websocket; изображения
// передаются как PNG в base64.
func toEvent(e entity.ProgressEvent) EventResponse {
	resp := EventResponse{Step: e.Step, Message: e.Message}
	switch p := e.Payload.(type) {
	case *image.Gray:
		if p != nil {
			resp.Image = encodeImage(p)
		}
	case *image.NRGBA:
		if p != nil {
			resp.Image = encodeImage(p)
		}
	case entity.BinarizationVariant:
		if p.Image != nil {
			resp.Image = encodeImage(p.Image)
		}
		resp.Data = map[string]any{"recipe": p.RecipeID, "judge_score": p.JudgeScore}
	case []entity.Candidate:
		resp.Data = toCandidates(p)
	case entity.Candidate:
		resp.Data = toCandidates([]entity.Candidate{p})[0]
	case []entity.CharacterBlob:
		boxes := make([][4]int, 0, len(p))
		for _, b := range p {
			boxes = append(boxes, [4]int{b.Box.Min.X, b.Box.Min.Y, b.Box.Dx(), b.Box.Dy()})
		}
		resp.Data = boxes
	case entity.ValidationResult:
		resp.Data = toInterpretations(p)
	case *entity.PlateReading:
		resp.Data = toReading(p)
	default:
		resp.Data = p
	}
	return resp
}

func encodeImage(img image.Image) string {
	data, err := vision.EncodePNG(img)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

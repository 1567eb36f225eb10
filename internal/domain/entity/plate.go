package entity

// PlateFormat формат номера.
type PlateFormat string

const (
	FormatUnknown  PlateFormat = ""
	FormatMercosul PlateFormat = "mercosul"
	FormatOld      PlateFormat = "old"
)

// CorrectionStage на каком шаге получена интерпретация; меньше — надёжнее.
type CorrectionStage int

const (
	StageExact CorrectionStage = iota
	StagePositional
	StageConfidence
)

func (s CorrectionStage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StagePositional:
		return "positional"
	case StageConfidence:
		return "confidence"
	default:
		return "unknown"
	}
}

// Interpretation один допустимый вариант чтения.
type Interpretation struct {
	Text   string          `json:"text"`
	Format PlateFormat     `json:"format"`
	Stage  CorrectionStage `json:"stage"`
	Edits  int             `json:"edits"`
}

// ValidationResult все различные допустимые интерпретации, упорядоченные по надёжности.
type ValidationResult []Interpretation

func (r ValidationResult) Empty() bool {
	return len(r) == 0
}

// WithFormat оставляет только интерпретации указанного формата.
func (r ValidationResult) WithFormat(f PlateFormat) ValidationResult {
	var out ValidationResult
	for _, it := range r {
		if it.Format == f {
			out = append(out, it)
		}
	}
	return out
}

package plate

import "plate-reader/internal/domain/entity"

// Disambiguator выбирает одну интерпретацию по цвету верхней полосы номера.
type Disambiguator struct {
	blueThreshold float64
}

func NewDisambiguator(blueThreshold float64) *Disambiguator {
	return &Disambiguator{blueThreshold: blueThreshold}
}

// Preferred формат, на который указывает цвет: синяя полоса сверху — Mercosul.
func (d *Disambiguator) Preferred(colors entity.ColorStats) entity.PlateFormat {
	if colors.UpperBlueRatio > d.blueThreshold {
		return entity.FormatMercosul
	}
	return entity.FormatOld
}

// Choose возвращает выбранную интерпретацию. Если предпочтительного формата нет,
// берётся первая по порядку результата: раньший шаг, меньше правок, порядок форматов.
func (d *Disambiguator) Choose(result entity.ValidationResult, colors entity.ColorStats) (entity.Interpretation, bool) {
	switch len(result) {
	case 0:
		return entity.Interpretation{}, false
	case 1:
		return result[0], true
	}
	if preferred := result.WithFormat(d.Preferred(colors)); len(preferred) > 0 {
		return preferred[0], true
	}
	return result[0], true
}

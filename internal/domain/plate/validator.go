package plate

import (
	"regexp"
	"sort"

	"plate-reader/internal/domain/entity"
)

const plateLength = 7

type grammar struct {
	format   entity.PlateFormat
	pattern  *regexp.Regexp
	template string // L — буква, N — цифра
}

// Порядок грамматик задаёт порядок форматов при равенстве.
var grammars = []grammar{
	{format: entity.FormatMercosul, pattern: regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z][0-9]{2}$`), template: "LLLNLNN"},
	{format: entity.FormatOld, pattern: regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`), template: "LLLNNNN"},
}

var (
	toDigit = map[byte]byte{
		'O': '0', 'Q': '0', 'D': '0', 'I': '1', 'Z': '2',
		'S': '5', 'G': '6', 'B': '8', 'T': '7', 'A': '4',
	}
	toLetter = map[byte]byte{
		'0': 'O', '1': 'I', '2': 'Z', '5': 'S', '6': 'G',
		'8': 'B', '9': 'G', '4': 'A', '7': 'T',
	}
	// Частые ошибки OCR на символах с низкой уверенностью.
	lowConfidence = map[byte]byte{
		'H': 'M', 'V': 'W', 'O': 'Q', 'Q': 'O',
		'B': '8', 'S': '5', 'I': '1', 'Z': '2',
	}
)

// Validator проверяет строку по грамматикам и предлагает исправления.
type Validator struct {
	lowConfidenceThreshold float64
}

// NewValidator создаёт валидатор с порогом уверенности для подстановок.
func NewValidator(lowConfidenceThreshold float64) *Validator {
	return &Validator{lowConfidenceThreshold: lowConfidenceThreshold}
}

// Validate возвращает все различные допустимые интерпретации строки из 7 символов.
// Строка другой длины даёт nil. Точные совпадения не прерывают поиск:
// собираются варианты всех шагов, повторы сохраняют самый ранний шаг.
func (v *Validator) Validate(text string, confidences []float64) entity.ValidationResult {
	if len(text) != plateLength {
		return nil
	}
	for i := 0; i < len(text); i++ {
		if !isAlnum(text[i]) {
			return nil
		}
	}

	c := &collector{original: text, seen: make(map[string]int)}

	c.exact(text, entity.StageExact)
	c.positional(text, entity.StagePositional)

	if len(confidences) == plateLength {
		substituted := []byte(text)
		changed := false
		for i, conf := range confidences {
			if conf >= v.lowConfidenceThreshold {
				continue
			}
			if r, ok := lowConfidence[substituted[i]]; ok {
				substituted[i] = r
				changed = true
			}
		}
		if changed {
			c.exact(string(substituted), entity.StageConfidence)
			c.positional(string(substituted), entity.StageConfidence)
		}
	}

	sort.SliceStable(c.result, func(i, j int) bool {
		a, b := c.result[i], c.result[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Edits != b.Edits {
			return a.Edits < b.Edits
		}
		return formatRank(a.Format) < formatRank(b.Format)
	})
	return c.result
}

type collector struct {
	original string
	seen     map[string]int
	result   entity.ValidationResult
}

func (c *collector) exact(text string, stage entity.CorrectionStage) {
	for _, g := range grammars {
		if g.pattern.MatchString(text) {
			c.add(text, g.format, stage)
		}
	}
}

func (c *collector) positional(text string, stage entity.CorrectionStage) {
	for _, g := range grammars {
		corrected, ok := applyTemplate(text, g.template)
		if !ok {
			continue
		}
		c.exact(corrected, stage)
	}
}

func (c *collector) add(text string, format entity.PlateFormat, stage entity.CorrectionStage) {
	key := string(format) + ":" + text
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = len(c.result)
	c.result = append(c.result, entity.Interpretation{
		Text:   text,
		Format: format,
		Stage:  stage,
		Edits:  hamming(c.original, text),
	})
}

// applyTemplate переводит символы, стоящие не на своём месте, через карты похожих глифов.
// Если хоть один символ перевести нельзя, вариант отбрасывается.
func applyTemplate(text, template string) (string, bool) {
	out := []byte(text)
	for i := range out {
		ch := out[i]
		switch template[i] {
		case 'L':
			if isLetter(ch) {
				continue
			}
			r, ok := toLetter[ch]
			if !ok {
				return "", false
			}
			out[i] = r
		case 'N':
			if isDigit(ch) {
				continue
			}
			r, ok := toDigit[ch]
			if !ok {
				return "", false
			}
			out[i] = r
		}
	}
	return string(out), true
}

func formatRank(f entity.PlateFormat) int {
	for i, g := range grammars {
		if g.format == f {
			return i
		}
	}
	return len(grammars)
}

func hamming(a, b string) int {
	n := 0
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isAlnum(c byte) bool  { return isLetter(c) || isDigit(c) }

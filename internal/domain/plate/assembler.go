package plate

import (
	"regexp"
	"strings"
	"unicode"
)

var plateShaped = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]{3}[0-9]{4}`),
	regexp.MustCompile(`[A-Z]{3}[0-9][A-Z0-9][0-9]{2}`),
}

// Assembled текст OCR после очистки.
type Assembled struct {
	Text        string
	Confidences []float64
	// PlateShaped найдена подстрока, похожая на номер.
	PlateShaped bool
	// HasSeparator в исходном тексте был '-' или ':' (признак старого формата).
	HasSeparator bool
}

// Assemble приводит сырой текст к верхнему регистру, убирает всё, кроме букв и цифр,
// и выделяет самую длинную подстроку, похожую на номер. Уверенности сдвигаются вместе с символами.
func Assemble(raw string, confidences []float64) Assembled {
	runes := []rune(raw)
	aligned := len(confidences) == len(runes)

	var (
		b     strings.Builder
		confs []float64
		out   Assembled
	)
	for i, r := range runes {
		if r == '-' || r == ':' {
			out.HasSeparator = true
		}
		r = unicode.ToUpper(r)
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			continue
		}
		b.WriteRune(r)
		if aligned {
			confs = append(confs, confidences[i])
		}
	}
	clean := b.String()

	start, end := -1, -1
	for _, re := range plateShaped {
		for _, loc := range re.FindAllStringIndex(clean, -1) {
			if loc[1]-loc[0] > end-start {
				start, end = loc[0], loc[1]
			}
		}
	}

	if start < 0 {
		out.Text = clean
		out.Confidences = confs
		return out
	}

	out.Text = clean[start:end]
	out.PlateShaped = true
	if aligned {
		out.Confidences = confs[start:end]
	}
	return out
}

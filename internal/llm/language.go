package llm

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
	"github.com/samber/lo"
)

// DefaultLanguages are the languages the detector tells apart when none are configured.
var DefaultLanguages = []string{"en", "es", "fr", "de", "pt", "it", "nl", "zh", "ja", "ko", "ru"}

// Detector finds the language of an item so the pipeline knows whether to
// translate it first.
type Detector struct {
	detector lingua.LanguageDetector
	target   lingua.Language
}

// NewDetector builds a detector for the given ISO 639-1 codes. The target is
// always among them.
func NewDetector(target string, codes []string) (*Detector, error) {
	targetLang, ok := fromISO(target)
	if !ok {
		return nil, fmt.Errorf("unknown target language %q", target)
	}
	if len(codes) == 0 {
		codes = DefaultLanguages
	}

	langs := []lingua.Language{targetLang}
	for _, code := range codes {
		lang, ok := fromISO(code)
		if !ok {
			return nil, fmt.Errorf("unknown language %q", code)
		}
		langs = append(langs, lang)
	}
	langs = lo.Uniq(langs)
	if len(langs) < 2 {
		return nil, fmt.Errorf("need at least two languages to detect between")
	}

	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(langs...).
			WithMinimumRelativeDistance(0.1).
			Build(),
		target: targetLang,
	}, nil
}

// Detect returns the ISO 639-1 code of the text's language, if it's reliably known.
func (d *Detector) Detect(text string) (string, bool) {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return toISO(lang), true
}

// NeedsTranslation reports the detected language and whether it differs
// from the target. Text of an unknown language is left alone.
func (d *Detector) NeedsTranslation(text string) (string, bool) {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return toISO(d.target), false
	}
	return toISO(lang), lang != d.target
}

// TargetName is the English name of the target language, used in prompts.
func (d *Detector) TargetName() string {
	name := strings.ToLower(d.target.String())
	return strings.ToUpper(name[:1]) + name[1:]
}

func (d *Detector) Target() string {
	return toISO(d.target)
}

func toISO(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

func fromISO(code string) (lingua.Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, lang := range lingua.AllLanguages() {
		if toISO(lang) == code {
			return lang, true
		}
	}
	return lingua.Unknown, false
}

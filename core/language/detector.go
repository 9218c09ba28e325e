package language

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/siherrmann/geoalert/model"
)

// ArabicShareThreshold is the minimum share of Arabic-block runes for the
// heuristic to classify a text as Arabic.
const ArabicShareThreshold = 0.15

// IdentifyFunc is a statistical language identifier.
// It returns the ISO 639-1 code and whether the result is reliable.
// An empty code means the language is unknown.
type IdentifyFunc func(text string) (code string, reliable bool)

// Detector classifies query text as Arabic or English.
type Detector struct {
	identify IdentifyFunc
}

// NewDetector creates a detector backed by whatlanggo.
func NewDetector() *Detector {
	return &Detector{identify: Whatlang}
}

// NewDetectorWithIdentifier creates a detector with a custom identifier.
func NewDetectorWithIdentifier(identify IdentifyFunc) *Detector {
	if identify == nil {
		identify = Whatlang
	}
	return &Detector{identify: identify}
}

// Whatlang identifies the language of text with whatlanggo.
func Whatlang(text string) (string, bool) {
	info := whatlanggo.Detect(text)
	if info.Lang < 0 {
		return "", false
	}
	return info.Lang.Iso6391(), info.IsReliable()
}

// Detect returns the language of text. It never fails.
func (d *Detector) Detect(text string) model.Language {
	return d.DetectWithOutcome(text).Value
}

// DetectWithOutcome returns the language of text.
// The outcome is degraded when the identifier could not classify the text
// and the character heuristic was used instead.
func (d *Detector) DetectWithOutcome(text string) model.Outcome[model.Language] {
	normalized := NormalizeWhitespace(text)
	if normalized == "" {
		return model.NewSuccess(model.LanguageEnglish)
	}

	code, reliable := d.identify(normalized)
	if code != "" && reliable {
		if code == "ar" {
			return model.NewSuccess(model.LanguageArabic)
		}
		return model.NewSuccess(model.LanguageEnglish)
	}

	return model.NewDegraded(Heuristic(normalized), fmt.Errorf("language identification inconclusive for %d runes", len([]rune(normalized))))
}

// Heuristic classifies text by the share of runes in the Arabic block U+0600..U+06FF.
func Heuristic(text string) model.Language {
	total := 0
	arabic := 0
	for _, r := range text {
		total++
		if r >= 0x0600 && r <= 0x06FF {
			arabic++
		}
	}
	if total == 0 {
		return model.LanguageEnglish
	}
	if float64(arabic)/float64(total) >= ArabicShareThreshold {
		return model.LanguageArabic
	}
	return model.LanguageEnglish
}

// NormalizeWhitespace trims text and collapses whitespace runs into single spaces.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

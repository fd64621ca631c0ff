// Package langid 识别文本语言，限定在伴侣支持的语言集合内
// Package langid identifies the language of a text, restricted to the languages the companion speaks
package langid

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	DefaultCode = "ar"
	DefaultName = "Arabic"

	// minLetters 少于该字母数的文本不做识别
	minLetters = 3
	// MinConfidence is the lowest whatlanggo confidence accepted as a detection.
	// Short Latin phrases ("Hello", "Merci beaucoup") score well below it.
	MinConfidence = 0.5
)

// Detection is the result of one identification.
type Detection struct {
	Code       string  // ISO 639-1
	Name       string  // English display name
	Confidence float64 // 0 when Fallback
	Fallback   bool
}

// Default returns the fallback detection.
func Default() Detection {
	return Detection{Code: DefaultCode, Name: DefaultName, Fallback: true}
}

var supported = map[whatlanggo.Lang]string{
	whatlanggo.Arb: "ar",
	whatlanggo.Eng: "en",
	whatlanggo.Hin: "hi",
	whatlanggo.Spa: "es",
	whatlanggo.Fra: "fr",
	whatlanggo.Tur: "tr",
	whatlanggo.Deu: "de",
}

// Detector 无状态，可并发使用
// Detector is stateless and safe for concurrent use
type Detector struct {
	opts whatlanggo.Options
}

func New() *Detector {
	whitelist := make(map[whatlanggo.Lang]bool, len(supported))
	for lang := range supported {
		whitelist[lang] = true
	}
	return &Detector{opts: whatlanggo.Options{Whitelist: whitelist}}
}

// Detect never fails: empty, too short, ambiguous or unrecognised text yields Default().
func (d *Detector) Detect(text string) Detection {
	text = strings.TrimSpace(text)
	if countLetters(text) < minLetters {
		return Default()
	}
	info := whatlanggo.DetectWithOptions(text, d.opts)
	code, ok := supported[info.Lang]
	if !ok || info.Confidence < MinConfidence {
		return Default()
	}
	return Detection{Code: code, Name: Name(code), Confidence: info.Confidence}
}

// Name 返回语言代码的英文名称，未知代码返回大写代码
// Name returns the English name of a language code, or the upper-cased code when unknown
func Name(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(code)
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

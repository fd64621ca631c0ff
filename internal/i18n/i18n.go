package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/text/language"
)

// fallbackLocale is used when neither config nor environment name one.
const fallbackLocale = "ar"

// overlays 按语言覆盖英文目录；未列出的语言只用英文
var overlays = map[string]map[string]string{
	"ar": ArMessages,
}

// I18n 是一个已解析的消息目录，创建后只读
// I18n is a resolved message catalog. It is read-only once built.
type I18n struct {
	locale   string
	messages map[string]string
}

var global atomic.Pointer[I18n]

// Global returns the process-wide catalog, built from the environment on first use.
func Global() *I18n {
	if g := global.Load(); g != nil {
		return g
	}
	global.CompareAndSwap(nil, New(""))
	return global.Load()
}

// Init replaces the process-wide catalog.
func Init(locale string) {
	global.Store(New(locale))
}

// T 使用全局目录翻译
func T(key string, args ...any) string {
	return Global().T(key, args...)
}

// New 解析 locale 并合并目录：英文打底，再叠加该语言的译文。
// An empty locale is taken from the environment.
func New(locale string) *I18n {
	if strings.TrimSpace(locale) == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)

	msgs := make(map[string]string, len(EnMessages))
	for k, v := range EnMessages {
		msgs[k] = v
	}
	for k, v := range overlays[locale] {
		msgs[k] = v
	}
	return &I18n{locale: locale, messages: msgs}
}

// T formats the message for key. Unknown keys come back unchanged so a
// missing translation is visible rather than blank.
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (i *I18n) Locale() string {
	return i.locale
}

// DetectLocale reads COMPANION_LOCALE, then the POSIX locale variables.
// "C" and "POSIX" carry no language and are skipped.
func DetectLocale() string {
	for _, env := range []string{"COMPANION_LOCALE", "LANG", "LC_ALL", "LC_MESSAGES"} {
		v := strings.TrimSpace(os.Getenv(env))
		switch v {
		case "", "C", "POSIX":
			continue
		}
		return normalizeLocale(v)
	}
	return fallbackLocale
}

// normalizeLocale maps POSIX or BCP 47 names onto a catalog key.
// Languages with a catalog collapse to their base ("ar_SA.UTF-8" is "ar");
// others keep their region in BCP 47 form ("fr_FR" is "fr-FR").
func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallbackLocale
	}
	if cut, _, found := strings.Cut(s, "."); found {
		s = cut
	}
	s = strings.ReplaceAll(s, "_", "-")

	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	base, _ := tag.Base()
	if b := base.String(); b == "en" || overlays[b] != nil {
		return b
	}
	return tag.String()
}

package model

// Language is the response language of a query.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
)

// Localized picks ar or en depending on the language.
func (l Language) Localized(ar, en string) string {
	if l == LanguageArabic {
		return ar
	}
	return en
}

package lexicache

import "strings"

// LanguageNames maps language codes to human-readable names used in source prompts.
var LanguageNames = map[string]string{
	"en": "English",
	"de": "German",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
	"ar": "Arabic",
	"he": "Hebrew",
	"fa": "Persian",
	"hi": "Hindi",

	"en_us": "English (United States)",
	"en_gb": "English (United Kingdom)",
	"es_mx": "Spanish (Mexico)",
	"pt_br": "Portuguese (Brazil)",
	"zh_cn": "Chinese (Simplified)",
	"zh_tw": "Chinese (Traditional)",
}

// RTLLanguages contains base language codes written right-to-left.
var RTLLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
}

// NormalizeLanguage converts a language code to the form used in termKeys
// (e.g., "en-US" → "en_us").
func NormalizeLanguage(langCode string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(langCode), "-", "_"))
}

// BaseLanguage extracts the base language code (e.g., "en" from "en_US").
func BaseLanguage(langCode string) string {
	return strings.Split(NormalizeLanguage(langCode), "_")[0]
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the code itself if not found.
func GetLanguageName(langCode string) string {
	norm := NormalizeLanguage(langCode)
	if name, ok := LanguageNames[norm]; ok {
		return name
	}
	if name, ok := LanguageNames[BaseLanguage(norm)]; ok {
		return name
	}
	return langCode
}

// GetDirection returns "rtl" for right-to-left languages, "ltr" otherwise.
func GetDirection(langCode string) string {
	if RTLLanguages[BaseLanguage(langCode)] {
		return "rtl"
	}
	return "ltr"
}

// IsRTL returns true if the language uses right-to-left text direction.
func IsRTL(langCode string) bool {
	return GetDirection(langCode) == "rtl"
}

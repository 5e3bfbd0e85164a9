package models

// Language constants
const (
	LangSimplifiedChinese  = "zh_CN"
	LangTraditionalChinese = "zh_TW"
	LangEnglish            = "en"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangSimplifiedChinese: {
		"violation_progress": "违规次数：%d/%d",
		"violation_muted":    "违规次数：%d/%d，已禁言%s",
		"duration_hours":     "%d小时",
		"duration_minutes":   "%d分钟",
	},

	LangTraditionalChinese: {
		"violation_progress": "違規次數：%d/%d",
		"violation_muted":    "違規次數：%d/%d，已禁言%s",
		"duration_hours":     "%d小時",
		"duration_minutes":   "%d分鐘",
	},

	LangEnglish: {
		"violation_progress": "Violations: %d/%d",
		"violation_muted":    "Violations: %d/%d, muted for %s",
		"duration_hours":     "%dh",
		"duration_minutes":   "%dm",
	},
}

// GetTranslation returns the translated text for the given key in the specified language
func GetTranslation(lang, key string) string {
	if translations, ok := Translations[lang]; ok {
		if translation, ok := translations[key]; ok {
			return translation
		}
	}

	// Fall back to Simplified Chinese if key not found in specified language
	if translation, ok := Translations[LangSimplifiedChinese][key]; ok {
		return translation
	}

	// Return the key itself if translation not found
	return key
}

// GetLanguageName returns the localized name of a language code
func GetLanguageName(langCode string) string {
	switch langCode {
	case LangSimplifiedChinese:
		return "简体中文"
	case LangTraditionalChinese:
		return "繁体中文"
	case LangEnglish:
		return "English"
	default:
		return langCode
	}
}

// IsSupportedLanguage reports whether a translation table exists for lang
func IsSupportedLanguage(lang string) bool {
	_, ok := Translations[lang]
	return ok
}

package chat

import (
	"strings"

	"golang.org/x/text/language"
)

// languageInfo describes one language the service can converse in.
type languageInfo struct {
	Code string
	// Name is the English display name.
	Name string
	// Aliases are names a user may type after a trigger phrase, in the
	// languages the trigger table covers. All lowercase.
	Aliases []string
}

// supportedLanguages matches the detector's model set. Order is not
// significant; lookups go through the alias index built below.
var supportedLanguages = []languageInfo{
	{Code: "en", Name: "English", Aliases: []string{"english", "inglés", "ingles", "anglais", "englisch", "inglese", "inglês", "engels"}},
	{Code: "es", Name: "Spanish", Aliases: []string{"spanish", "español", "espanol", "castellano", "espagnol", "spanisch", "spagnolo", "espanhol"}},
	{Code: "fr", Name: "French", Aliases: []string{"french", "français", "francais", "francés", "frances", "französisch", "francese", "francês"}},
	{Code: "de", Name: "German", Aliases: []string{"german", "deutsch", "alemán", "aleman", "allemand", "tedesco", "alemão", "duits"}},
	{Code: "it", Name: "Italian", Aliases: []string{"italian", "italiano", "italien", "italienisch"}},
	{Code: "pt", Name: "Portuguese", Aliases: []string{"portuguese", "português", "portugues", "portugais", "portugiesisch", "portoghese"}},
	{Code: "nl", Name: "Dutch", Aliases: []string{"dutch", "nederlands", "holandés", "holandes", "néerlandais", "neerlandais", "olandese"}},
	{Code: "ru", Name: "Russian", Aliases: []string{"russian", "русский", "ruso", "russe", "russisch", "russo"}},
	{Code: "zh", Name: "Chinese", Aliases: []string{"chinese", "中文", "汉语", "chino", "chinois", "chinesisch", "cinese", "chinês", "mandarin"}},
	{Code: "ja", Name: "Japanese", Aliases: []string{"japanese", "日本語", "japonés", "japones", "japonais", "japanisch", "giapponese", "japonês"}},
	{Code: "ko", Name: "Korean", Aliases: []string{"korean", "한국어", "coreano", "coréen", "coreen", "koreanisch"}},
	{Code: "ar", Name: "Arabic", Aliases: []string{"arabic", "العربية", "árabe", "arabe", "arabisch", "arabo"}},
	{Code: "hi", Name: "Hindi", Aliases: []string{"hindi", "हिन्दी", "हिंदी"}},
}

var (
	aliasIndex = map[string]string{}
	nameIndex  = map[string]string{}
)

func init() {
	for _, info := range supportedLanguages {
		nameIndex[info.Code] = info.Name
		aliasIndex[info.Code] = info.Code
		for _, alias := range info.Aliases {
			aliasIndex[alias] = info.Code
		}
	}
}

// ResolveLanguageName maps a user-typed language name or code to a
// supported ISO 639-1 code. Unrecognized or ambiguous tokens resolve to
// ("", false) so the caller can fall through to normal handling.
func ResolveLanguageName(token string) (string, bool) {
	token = strings.ToLower(strings.TrimFunc(token, isTokenTrim))
	if token == "" {
		return "", false
	}
	if code, ok := aliasIndex[token]; ok {
		return code, true
	}
	// Accept raw tags like "pt-BR" for any supported language.
	if tag, err := language.Parse(token); err == nil {
		base, _ := tag.Base()
		if _, ok := nameIndex[base.String()]; ok {
			return base.String(), true
		}
	}
	return "", false
}

// LanguageDisplayName returns the English display name for a supported
// code, or the code itself when unknown.
func LanguageDisplayName(code string) string {
	if name, ok := nameIndex[code]; ok {
		return name
	}
	return code
}

// IsSupportedLanguage reports whether the code is in the conversational set.
func IsSupportedLanguage(code string) bool {
	_, ok := nameIndex[code]
	return ok
}

func isTokenTrim(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', ':', '"', '\'', ')', '(', '¿', '¡':
		return true
	}
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

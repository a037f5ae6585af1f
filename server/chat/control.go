package chat

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// triggerPhrases are the phrases that, followed by a recognizable language
// name, turn a message into a language-change instruction. Covers the
// languages the detector knows well enough to see such requests in.
var triggerPhrases = []string{
	// English
	"switch to",
	"change to",
	"speak in",
	"speak to me in",
	"talk in",
	"talk to me in",
	"reply in",
	"respond in",
	"answer in",
	"write in",
	"let's continue in",
	"lets continue in",
	"from now on use",
	// Spanish
	"habla en",
	"háblame en",
	"hablame en",
	"responde en",
	"contesta en",
	"contéstame en",
	"contestame en",
	"cambia a",
	"escribe en",
	// French
	"parle en",
	"parle-moi en",
	"parle moi en",
	"réponds en",
	"reponds en",
	"réponds-moi en",
	"passe en",
	"écris en",
	"ecris en",
	// German
	"sprich auf",
	"sprich mit mir auf",
	"antworte auf",
	"schreib auf",
	"wechsle zu",
	// Italian
	"parla in",
	"parlami in",
	"rispondi in",
	"scrivi in",
	"passa a",
	// Portuguese
	"fala em",
	"fale em",
	"responde em",
	"responda em",
	"escreve em",
	"escreva em",
	"muda para",
	"mude para",
}

// phrasesByLength is triggerPhrases sorted longest first so that when one
// phrase is a suffix-extension of another ("talk to me in" vs "talk in")
// the more specific match wins.
var phrasesByLength []string

func init() {
	phrasesByLength = make([]string, len(triggerPhrases))
	copy(phrasesByLength, triggerPhrases)
	sort.Slice(phrasesByLength, func(i, j int) bool {
		return len(phrasesByLength[i]) > len(phrasesByLength[j])
	})
}

// DetectLanguageSwitch decides whether a message is a language-change
// instruction. It scans for the longest trigger phrase present at a word
// boundary and resolves the token that follows it to a supported language.
// A trigger phrase whose trailing token is not a recognizable language name
// does not count: "switch to decaf" is an ordinary message.
func DetectLanguageSwitch(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, phrase := range phrasesByLength {
		idx := phraseIndex(lowered, phrase)
		if idx < 0 {
			continue
		}
		tail := lowered[idx+len(phrase):]
		token := firstToken(tail)
		if token == "" {
			continue
		}
		if code, ok := ResolveLanguageName(token); ok {
			return code, true
		}
		// The phrase's argument is not a language ("switch to decaf");
		// keep scanning in case another trigger carries a real one.
	}
	return "", false
}

// phraseIndex finds phrase in text starting at a word boundary and
// immediately followed by whitespace. Returns -1 when absent.
func phraseIndex(text, phrase string) int {
	from := 0
	for {
		rel := strings.Index(text[from:], phrase)
		if rel < 0 {
			return -1
		}
		idx := from + rel
		end := idx + len(phrase)
		boundedLeft := true
		if idx > 0 {
			// Decode the full rune before the match; a byte-level check
			// would misread the tail of a multibyte letter as a boundary.
			r, _ := utf8.DecodeLastRuneInString(text[:idx])
			boundedLeft = !isWordRune(r)
		}
		boundedRight := end < len(text) && (text[end] == ' ' || text[end] == '\t')
		if boundedLeft && boundedRight {
			return idx
		}
		from = idx + 1
	}
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

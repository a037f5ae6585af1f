package chat

import (
	"fmt"
)

// acknowledgments are written in the language just switched to, so the user
// gets immediate confirmation the switch took effect.
var acknowledgments = map[string]string{
	"en": "Understood. I'll reply in English from now on.",
	"es": "Entendido. A partir de ahora responderé en español.",
	"fr": "Compris. Je répondrai désormais en français.",
	"de": "Verstanden. Ich antworte ab jetzt auf Deutsch.",
	"it": "Capito. D'ora in poi risponderò in italiano.",
	"pt": "Entendido. A partir de agora responderei em português.",
	"nl": "Begrepen. Vanaf nu antwoord ik in het Nederlands.",
	"ru": "Понятно. Теперь я буду отвечать по-русски.",
	"zh": "好的，从现在开始我会用中文回复。",
	"ja": "了解しました。これからは日本語で返信します。",
	"ko": "알겠습니다. 이제부터 한국어로 답변하겠습니다.",
	"ar": "مفهوم. سأرد بالعربية من الآن فصاعدا.",
	"hi": "समझ गया। अब से मैं हिन्दी में उत्तर दूँगा।",
}

// acknowledgment returns the system turn text confirming a language switch.
func acknowledgment(code string) string {
	if ack, ok := acknowledgments[code]; ok {
		return ack
	}
	return fmt.Sprintf("Understood. I'll reply in %s from now on.", LanguageDisplayName(code))
}

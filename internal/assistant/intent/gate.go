package intent

import "strings"

// gateVocabulary lists the words whose presence makes an utterance plausibly
// calendar-related. The gate exists purely to avoid the cost and latency of a
// classifier call for obviously unrelated chat; it errs permissive.
var gateVocabulary = []string{
	"schedule", "calendar", "meeting", "meetings", "appointment", "appointments",
	"event", "events", "reminder", "remind", "book", "reschedule",
	"cancel", "delete", "remove", "clear",
	"today", "tomorrow", "tonight", "week", "weekend", "month",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"am", "pm", "noon", "midnight", "o'clock", "oclock",
}

// ShouldClassify reports whether utterance warrants an LLM classifier call:
// either it contains calendar vocabulary, or there is open conversational
// context (a last-mentioned event or pending created events) that a follow-up
// like "delete that" might reference.
func ShouldClassify(utterance string, hasOpenContext bool) bool {
	if hasOpenContext {
		return true
	}
	lower := strings.ToLower(utterance)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && r != '\''
	}) {
		for _, v := range gateVocabulary {
			if w == v {
				return true
			}
		}
	}
	return false
}

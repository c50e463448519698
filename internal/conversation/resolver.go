package conversation

import "strings"

// nameIndicators are phrases that tend to precede a patient name in free
// text. The extraction is a low-confidence heuristic: it guesses, it does
// not identify. Resolution against the backend decides what, if anything,
// the guess means.
var nameIndicators = []string{
	"patient information for ",
	"information about ",
	"show me ",
	"tell me about ",
	"what about ",
	"patient ",
	"info for ",
}

// ExtractPatientName pulls a candidate patient name from a message, or ""
// when no indicator phrase is present. At most the two words following the
// first matching indicator are taken.
func ExtractPatientName(message string) string {
	message = strings.ToLower(message)

	for _, indicator := range nameIndicators {
		pos := strings.Index(message, indicator)
		if pos < 0 {
			continue
		}
		remaining := strings.TrimSpace(message[pos+len(indicator):])
		words := strings.Fields(remaining)
		if len(words) == 0 {
			continue
		}
		if len(words) >= 2 {
			return cleanNameWord(words[0]) + " " + cleanNameWord(words[1])
		}
		return cleanNameWord(words[0])
	}
	return ""
}

// cleanNameWord strips surrounding punctuation and the possessive suffix, so
// "Doe's" matches the stored "Doe".
func cleanNameWord(word string) string {
	word = strings.Trim(word, ".,!?;:'\"")
	word = strings.TrimSuffix(word, "'s")
	return word
}

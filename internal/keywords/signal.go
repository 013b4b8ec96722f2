package keywords

import (
	"regexp"
	"strings"
)

// Ad-signal cues. A text with none of these and no catalogue match is treated
// as not being an advertisement at all.
var (
	phonePattern = regexp.MustCompile(`\b(\+?\d{1,3}[-.\s]?)?(\(?\d{2,4}\)?[-.\s]?)\d{3,4}[-.\s]?\d{4}\b`)
	pricePattern = regexp.MustCompile(`(\$\s?\d|\d+\s?(won|krw|usd)|\d+\s?%)`)
	urlPattern   = regexp.MustCompile(`(https?://|www\.)\S+`)

	promoCues = []string{
		"event", "promotion", "book now", "reservation", "consultation",
		"contact us", "call now", "opening", "open now", "visit us",
		"appointment", "inquiry", "kakao", "instagram", "follow us",
	}
	clinicCues = []string{
		"clinic", "hospital", "dermatology", "plastic surgery", "dental",
		"oriental medicine", "treatment", "procedure", "surgery", "doctor",
	}
)

// AdSignalScore counts independent advertisement cues found in text.
func AdSignalScore(text string) int {
	lowered := strings.ToLower(text)
	score := 0
	if phonePattern.MatchString(lowered) {
		score++
	}
	if pricePattern.MatchString(lowered) {
		score++
	}
	if urlPattern.MatchString(lowered) {
		score++
	}
	for _, cue := range promoCues {
		if strings.Contains(lowered, cue) {
			score++
			break
		}
	}
	for _, cue := range clinicCues {
		if strings.Contains(lowered, cue) {
			score++
			break
		}
	}
	return score
}

// LooksLikeAdvertisement reports whether the text carries enough cues to be
// treated as an advertisement. Very short texts never qualify.
func LooksLikeAdvertisement(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 10 {
		return false
	}
	return AdSignalScore(trimmed) >= 2
}

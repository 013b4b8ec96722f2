package scoring

// ScoreNotAdvertisement is the sentinel for texts that carry no advertisement
// signal at all. It is a distinct outcome, not a low score.
const ScoreNotAdvertisement = -1

// Risk levels.
const (
	LevelNA       = "NA"
	LevelSafe     = "SAFE"
	LevelLow      = "LOW"
	LevelMedium   = "MEDIUM"
	LevelHigh     = "HIGH"
	LevelCritical = "CRITICAL"
)

// Judgments.
const (
	JudgmentUnnecessary   = "unnecessary"
	JudgmentPassed        = "passed"
	JudgmentCaution       = "caution"
	JudgmentSuggestEdit   = "suggest_edit"
	JudgmentRecommendEdit = "recommend_edit"
	JudgmentRejected      = "rejected"
)

type riskBand struct {
	min      int
	max      int
	level    string
	judgment string
}

// riskBands is the sole authority mapping scores to levels and judgments.
// Nothing else in the repo assigns a risk level or judgment.
var riskBands = []riskBand{
	{min: ScoreNotAdvertisement, max: ScoreNotAdvertisement, level: LevelNA, judgment: JudgmentUnnecessary},
	{min: 0, max: 10, level: LevelSafe, judgment: JudgmentPassed},
	{min: 11, max: 30, level: LevelLow, judgment: JudgmentCaution},
	{min: 31, max: 60, level: LevelMedium, judgment: JudgmentSuggestEdit},
	{min: 61, max: 80, level: LevelHigh, judgment: JudgmentRecommendEdit},
	{min: 81, max: 100, level: LevelCritical, judgment: JudgmentRejected},
}

// Derive maps a risk score to its level and judgment. Out-of-range scores are
// clamped into [0,100] first; only the exact sentinel maps to NA.
func Derive(score int) (level, judgment string) {
	if score != ScoreNotAdvertisement {
		score = ClampScore(score)
	}
	for _, band := range riskBands {
		if score >= band.min && score <= band.max {
			return band.level, band.judgment
		}
	}
	// Unreachable after clamping.
	return LevelSafe, JudgmentPassed
}

// ClampScore bounds a non-sentinel score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Judgments returns every judgment in band order. Filing buckets are named
// after these.
func Judgments() []string {
	out := make([]string, 0, len(riskBands))
	for _, band := range riskBands {
		out = append(out, band.judgment)
	}
	return out
}

// ValidJudgment reports whether name is one of the derivation table judgments.
func ValidJudgment(name string) bool {
	for _, band := range riskBands {
		if band.judgment == name {
			return true
		}
	}
	return false
}

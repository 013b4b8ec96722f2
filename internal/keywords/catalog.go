package keywords

import (
	"sort"
	"strings"
)

// Severity grades how strongly a regulated term indicates a violation.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Keyword is a regulated advertising term with its classification.
type Keyword struct {
	Term      string   `json:"term"`
	Category  string   `json:"category"`
	Severity  Severity `json:"severity"`
	Reference string   `json:"reference"`
}

// Categories of regulated terms. These mirror the medical advertising review
// guidelines the catalogue is drawn from.
const (
	CategoryGuarantee    = "treatment_guarantee"
	CategorySuperlative  = "superlative_claim"
	CategoryExaggeration = "exaggeration"
	CategoryInducement   = "patient_inducement"
	CategoryPrice        = "price_promotion"
	CategoryComparison   = "comparative_claim"
	CategoryTestimonial  = "patient_testimonial"
	CategoryBeforeAfter  = "before_after_photo"
	CategoryUnapproved   = "unapproved_procedure"
)

const (
	refArticle56_2_1 = "Medical Service Act art. 56(2)1"
	refArticle56_2_2 = "Medical Service Act art. 56(2)2"
	refArticle56_2_3 = "Medical Service Act art. 56(2)3"
	refArticle56_2_7 = "Medical Service Act art. 56(2)7"
	refArticle27_3   = "Medical Service Act art. 27(3)"
	refReviewGuide   = "Ad review guideline ch. 4"
)

var catalog = []Keyword{
	// Treatment-effect guarantees. The strongest signal of an unlawful ad.
	{Term: "100% guaranteed", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "guaranteed results", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "complete cure", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "permanent cure", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "no recurrence", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "no side effects", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "painless", Category: CategoryGuarantee, Severity: SeverityMedium, Reference: refArticle56_2_1},
	{Term: "full recovery", Category: CategoryGuarantee, Severity: SeverityHigh, Reference: refArticle56_2_1},
	{Term: "cure rate", Category: CategoryGuarantee, Severity: SeverityMedium, Reference: refArticle56_2_1},

	// Superlatives.
	{Term: "best hospital", Category: CategorySuperlative, Severity: SeverityHigh, Reference: refArticle56_2_3},
	{Term: "best clinic", Category: CategorySuperlative, Severity: SeverityHigh, Reference: refArticle56_2_3},
	{Term: "top doctor", Category: CategorySuperlative, Severity: SeverityHigh, Reference: refArticle56_2_3},
	{Term: "number one", Category: CategorySuperlative, Severity: SeverityMedium, Reference: refArticle56_2_3},
	{Term: "no. 1", Category: CategorySuperlative, Severity: SeverityMedium, Reference: refArticle56_2_3},
	{Term: "world class", Category: CategorySuperlative, Severity: SeverityMedium, Reference: refArticle56_2_3},
	{Term: "the only", Category: CategorySuperlative, Severity: SeverityMedium, Reference: refArticle56_2_3},
	{Term: "unrivaled", Category: CategorySuperlative, Severity: SeverityMedium, Reference: refArticle56_2_3},

	// Exaggeration.
	{Term: "miracle", Category: CategoryExaggeration, Severity: SeverityHigh, Reference: refArticle56_2_2},
	{Term: "magical effect", Category: CategoryExaggeration, Severity: SeverityHigh, Reference: refArticle56_2_2},
	{Term: "instant effect", Category: CategoryExaggeration, Severity: SeverityMedium, Reference: refArticle56_2_2},
	{Term: "immediate results", Category: CategoryExaggeration, Severity: SeverityMedium, Reference: refArticle56_2_2},
	{Term: "revolutionary", Category: CategoryExaggeration, Severity: SeverityMedium, Reference: refArticle56_2_2},
	{Term: "perfect safety", Category: CategoryExaggeration, Severity: SeverityHigh, Reference: refArticle56_2_2},
	{Term: "dramatic improvement", Category: CategoryExaggeration, Severity: SeverityMedium, Reference: refArticle56_2_2},

	// Patient inducement.
	{Term: "free consultation", Category: CategoryInducement, Severity: SeverityLow, Reference: refArticle27_3},
	{Term: "free checkup", Category: CategoryInducement, Severity: SeverityMedium, Reference: refArticle27_3},
	{Term: "free treatment", Category: CategoryInducement, Severity: SeverityHigh, Reference: refArticle27_3},
	{Term: "gift certificate", Category: CategoryInducement, Severity: SeverityHigh, Reference: refArticle27_3},
	{Term: "referral reward", Category: CategoryInducement, Severity: SeverityHigh, Reference: refArticle27_3},
	{Term: "bring a friend", Category: CategoryInducement, Severity: SeverityMedium, Reference: refArticle27_3},

	// Price promotion.
	{Term: "discount event", Category: CategoryPrice, Severity: SeverityMedium, Reference: refArticle27_3},
	{Term: "half price", Category: CategoryPrice, Severity: SeverityMedium, Reference: refArticle27_3},
	{Term: "special price", Category: CategoryPrice, Severity: SeverityLow, Reference: refArticle27_3},
	{Term: "limited time offer", Category: CategoryPrice, Severity: SeverityMedium, Reference: refArticle27_3},
	{Term: "lowest price", Category: CategoryPrice, Severity: SeverityMedium, Reference: refArticle27_3},

	// Comparative claims against other providers.
	{Term: "better than other clinics", Category: CategoryComparison, Severity: SeverityHigh, Reference: refArticle56_2_3},
	{Term: "superior to", Category: CategoryComparison, Severity: SeverityMedium, Reference: refArticle56_2_3},
	{Term: "unlike other hospitals", Category: CategoryComparison, Severity: SeverityMedium, Reference: refArticle56_2_3},

	// Testimonials and experience reports.
	{Term: "patient testimonial", Category: CategoryTestimonial, Severity: SeverityMedium, Reference: refArticle56_2_7},
	{Term: "real patient review", Category: CategoryTestimonial, Severity: SeverityMedium, Reference: refArticle56_2_7},
	{Term: "treatment experience", Category: CategoryTestimonial, Severity: SeverityLow, Reference: refArticle56_2_7},

	// Before/after imagery.
	{Term: "before and after", Category: CategoryBeforeAfter, Severity: SeverityMedium, Reference: refReviewGuide},
	{Term: "before/after photos", Category: CategoryBeforeAfter, Severity: SeverityMedium, Reference: refReviewGuide},

	// Procedures without regulatory approval.
	{Term: "newest procedure", Category: CategoryUnapproved, Severity: SeverityLow, Reference: refReviewGuide},
	{Term: "exclusive technique", Category: CategoryUnapproved, Severity: SeverityMedium, Reference: refReviewGuide},
	{Term: "patented treatment", Category: CategoryUnapproved, Severity: SeverityMedium, Reference: refReviewGuide},
}

// All returns the full catalogue. The returned slice is a copy.
func All() []Keyword {
	out := make([]Keyword, len(catalog))
	copy(out, catalog)
	return out
}

// ByCategory groups the catalogue by category name.
func ByCategory() map[string][]Keyword {
	out := make(map[string][]Keyword)
	for _, kw := range catalog {
		out[kw.Category] = append(out[kw.Category], kw)
	}
	return out
}

// BySeverity groups the catalogue by severity.
func BySeverity() map[Severity][]Keyword {
	out := make(map[Severity][]Keyword)
	for _, kw := range catalog {
		out[kw.Severity] = append(out[kw.Severity], kw)
	}
	return out
}

// Categories returns the sorted list of category names.
func Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, kw := range catalog {
		if _, ok := seen[kw.Category]; ok {
			continue
		}
		seen[kw.Category] = struct{}{}
		out = append(out, kw.Category)
	}
	sort.Strings(out)
	return out
}

// Match is an occurrence of a catalogue term in a text.
type Match struct {
	Keyword
	Count int `json:"count"`
}

// FindAll scans text for catalogue terms, case-insensitively, and returns one
// Match per distinct term with its occurrence count.
func FindAll(text string) []Match {
	lowered := strings.ToLower(text)
	var out []Match
	for _, kw := range catalog {
		count := strings.Count(lowered, strings.ToLower(kw.Term))
		if count > 0 {
			out = append(out, Match{Keyword: kw, Count: count})
		}
	}
	return out
}

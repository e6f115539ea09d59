package memory

import (
	"regexp"
	"strings"
)

// feedbackCategory is one of the four regex-detectable feedback kinds.
type feedbackCategory struct {
	sentiment      Sentiment
	recommendation string
	patterns       []*regexp.Regexp
}

// feedbackRegexConfidence is the confidence assigned to every regex hit.
// Anything past this stage (contradiction checking, decay) works off of
// it; there is no finer-grained scoring at detection time.
const feedbackRegexConfidence = 0.7

var feedbackCategories = []feedbackCategory{
	{
		sentiment:      SentimentNegative,
		recommendation: "avoid_repeating",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bno,?\s+(?:i meant|that's not|that is not)\b`),
			regexp.MustCompile(`(?i)\bactually,?\s+i\s+(?:meant|want|wanted)\b`),
			regexp.MustCompile(`(?i)\bthat'?s\s+wrong\b`),
			regexp.MustCompile(`(?i)\b(?:correction|to clarify)[,:]`),
		},
	},
	{
		sentiment:      SentimentNeutral,
		recommendation: "apply_going_forward",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi\s+(?:prefer|like it when|want you to)\b`),
			regexp.MustCompile(`(?i)\bfrom now on\b`),
			regexp.MustCompile(`(?i)\balways\s+(?:use|do|respond|reply)\b`),
			regexp.MustCompile(`(?i)\bplease\s+(?:use|stick to|keep using)\b`),
		},
	},
	{
		sentiment:      SentimentPositive,
		recommendation: "repeat",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:perfect|exactly|great job|well done|that'?s right|nailed it)\b`),
			regexp.MustCompile(`(?i)\bthank(?:s| you),?\s+that'?s\s+(?:it|correct|perfect)\b`),
		},
	},
	{
		sentiment:      SentimentNegative,
		recommendation: "avoid_repeating",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:don'?t|do not|stop)\s+(?:do that|do this|say that)\b`),
			regexp.MustCompile(`(?i)\bthat'?s\s+not\s+(?:helpful|useful|what i (?:wanted|asked))\b`),
			regexp.MustCompile(`(?i)\b(?:never|don'?t)\s+(?:use|call|run)\b`),
		},
	},
}

// DetectFeedback scans a user message for one of the four known feedback
// patterns (correction, preference, positive, negative) and, if found,
// returns a Learning candidate at the fixed regex-detection confidence.
// The caller is expected to pass the result through RecordLearning for
// contradiction checking against existing active learnings.
func DetectFeedback(content string) (Learning, bool) {
	for _, cat := range feedbackCategories {
		for _, pat := range cat.patterns {
			if loc := pat.FindStringIndex(content); loc != nil {
				return Learning{
					Content:        extractFeedbackContent(content, loc),
					Sentiment:      cat.sentiment,
					Confidence:     feedbackRegexConfidence,
					Recommendation: cat.recommendation,
					Source:         "regex",
				}, true
			}
		}
	}
	return Learning{}, false
}

// extractFeedbackContent pulls the sentence containing the match, falling
// back to the whole message when no clear sentence boundary is found.
func extractFeedbackContent(content string, matchLoc []int) string {
	start := strings.LastIndexAny(content[:matchLoc[0]], ".!?\n")
	if start < 0 {
		start = 0
	} else {
		start++
	}
	end := strings.IndexAny(content[matchLoc[1]:], ".!?\n")
	if end < 0 {
		end = len(content)
	} else {
		end += matchLoc[1] + 1
	}
	return strings.TrimSpace(content[start:end])
}

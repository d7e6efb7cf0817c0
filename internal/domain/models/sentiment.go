package models

import "time"

// SentimentLabel classifies a score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// LabelForScore maps a score in [-1,1] to its label.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score > 0.3:
		return SentimentPositive
	case score < -0.3:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// LabelOrDerive keeps the classifier-supplied label when it is one of
// the known labels and derives one from the score otherwise.
func LabelOrDerive(label string, score float64) SentimentLabel {
	switch l := SentimentLabel(label); l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return l
	}
	return LabelForScore(score)
}

// SentimentScore is produced by the external news classifier; the
// pipeline only consumes it as a forecast feature.
type SentimentScore struct {
	Commodity        string
	Date             time.Time
	Score            float64 // [-1, 1]
	Label            SentimentLabel
	SourceArticleIDs []string
}

// SentimentDistribution counts scores by label over a window.
type SentimentDistribution struct {
	Positive int
	Negative int
	Neutral  int
}

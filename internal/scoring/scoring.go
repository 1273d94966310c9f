// Package scoring computes the per-chunk score vector and the
// product-level AI_Trust_Score composite, kept as pure functions over a
// pluggable weights struct rather than hardcoded inline in the scoring
// or fingerprint pipeline stages.
package scoring

// Metrics is a single chunk's (or a product-level aggregate's) score
// vector, each dimension normalized to [0, 1].
type Metrics struct {
	Completeness     float64
	Accuracy         float64
	Quality          float64
	Timeliness       float64
	MetadataPresence float64
}

// TrustWeights assigns a relative weight to each Metrics dimension used to
// compose the AI_Trust_Score. Weights need not sum to 1; Compose
// normalizes by their sum.
type TrustWeights struct {
	Completeness     float64
	Accuracy         float64
	Quality          float64
	Timeliness       float64
	MetadataPresence float64
}

// DefaultTrustWeights are spec.md's documented defaults. The scoring stage
// always uses them; a product's chunking_config is not read for weights.
func DefaultTrustWeights() TrustWeights {
	return TrustWeights{
		Completeness:     0.3,
		Accuracy:         0.25,
		Quality:          0.2,
		Timeliness:       0.15,
		MetadataPresence: 0.1,
	}
}

// Compose computes the weighted composite score for a single Metrics
// vector, clamped to [0, 1].
func Compose(weights TrustWeights, m Metrics) float64 {
	total := weights.Completeness + weights.Accuracy + weights.Quality + weights.Timeliness + weights.MetadataPresence
	if total <= 0 {
		return 0
	}
	score := weights.Completeness*m.Completeness +
		weights.Accuracy*m.Accuracy +
		weights.Quality*m.Quality +
		weights.Timeliness*m.Timeliness +
		weights.MetadataPresence*m.MetadataPresence
	score /= total
	return clamp01(score)
}

// Aggregate averages a set of per-chunk Metrics into a single product-level
// Metrics vector, the input to the fingerprint stage's Compose call.
func Aggregate(chunks []Metrics) Metrics {
	if len(chunks) == 0 {
		return Metrics{}
	}
	var agg Metrics
	for _, m := range chunks {
		agg.Completeness += m.Completeness
		agg.Accuracy += m.Accuracy
		agg.Quality += m.Quality
		agg.Timeliness += m.Timeliness
		agg.MetadataPresence += m.MetadataPresence
	}
	n := float64(len(chunks))
	return Metrics{
		Completeness:     agg.Completeness / n,
		Accuracy:         agg.Accuracy / n,
		Quality:          agg.Quality / n,
		Timeliness:       agg.Timeliness / n,
		MetadataPresence: agg.MetadataPresence / n,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

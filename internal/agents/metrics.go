package agents

// Fixed defaults used when neither a manual override, a direct state
// value, nor a wearable observation resolved a metric.
const (
	DefaultSleepHours   = 7.0
	DefaultProteinGrams = 50.0
	DefaultMood         = 7.0
	DefaultDietQuality  = 7.0
	DefaultWeightKG     = 70.0
)

// Recovery score blend weights over normalized inputs.
const (
	sleepWeight   = 0.4
	proteinWeight = 0.3
	moodWeight    = 0.2
	weightWeight  = 0.1
)

// resolveMetric walks the provenance chain and returns the first
// non-nil value, falling back to the default. The default itself is
// never nil, so the result is always usable.
func resolveMetric(def float64, tiers ...*float64) float64 {
	for _, v := range tiers {
		if v != nil {
			return *v
		}
	}
	return def
}

// effectiveMetrics is the reconciled metric set the recovery agent
// scores against.
type effectiveMetrics struct {
	SleepHours   float64
	ProteinGrams float64
	Mood         float64
	DietQuality  float64
	WeightKG     float64
}

// resolveEffective reconciles each metric through the precedence chain
// manual override -> direct state value -> wearable observation ->
// fixed default.
func resolveEffective(s *State) effectiveMetrics {
	var wearableSleep, wearableProtein, wearableWeight *float64
	if s.Wearable != nil {
		wearableSleep = s.Wearable.SleepHours
		wearableProtein = s.Wearable.Protein
		wearableWeight = s.Wearable.Weight
	}

	return effectiveMetrics{
		SleepHours:   resolveMetric(DefaultSleepHours, s.ManualSleepHours, s.SleepHours, wearableSleep),
		ProteinGrams: resolveMetric(DefaultProteinGrams, s.ManualProteinGrams, s.ProteinGrams, wearableProtein),
		Mood:         resolveMetric(DefaultMood, s.Mood),
		DietQuality:  resolveMetric(DefaultDietQuality, s.DietQuality),
		WeightKG:     resolveMetric(DefaultWeightKG, s.Weight, wearableWeight),
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampRanges applies the physical bounds: sleep 0-24h, protein
// 0-300g, mood 0-10, diet quality 0-10, weight 30-200kg.
func (m effectiveMetrics) clampRanges() effectiveMetrics {
	m.SleepHours = clamp(m.SleepHours, 0, 24)
	m.ProteinGrams = clamp(m.ProteinGrams, 0, 300)
	m.Mood = clamp(m.Mood, 0, 10)
	m.DietQuality = clamp(m.DietQuality, 0, 10)
	m.WeightKG = clamp(m.WeightKG, 30, 200)
	return m
}

// recoveryScore blends normalized sleep, a nutrition signal (protein
// grams for recovery-specific queries, diet quality otherwise), mood
// and weight into a composite percentage clamped to [0,100].
func recoveryScore(sleepHours, nutrition, nutritionScale, mood, weightKG float64) float64 {
	score := (sleepHours/8)*sleepWeight +
		(nutrition/nutritionScale)*proteinWeight +
		(mood/10)*moodWeight +
		(weightKG/100)*weightWeight

	return clamp(score*100, 0, 100)
}

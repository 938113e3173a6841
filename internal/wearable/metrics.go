package wearable

import "encoding/json"

// Metrics is the best-effort snapshot assembled from the wearable API.
// A nil field means that metric could not be observed; no category
// failure is fatal to the batch.
type Metrics struct {
	SleepHours      *float64
	SleepEfficiency *float64

	Username *string
	Age      *int
	Weight   *float64
	Height   *float64

	Steps          *int
	CaloriesBurned *int
	Distance       *float64
	ActiveMinutes  *int

	RestingHeartRate *int
	HeartRateZones   []HeartRateZone

	CaloriesConsumed *int
	Protein          *float64
	Carbs            *float64
	Fat              *float64

	WaterML *int
}

// HeartRateZone is one observed heart rate zone summary.
type HeartRateZone struct {
	Name     string  `json:"name"`
	Min      int     `json:"min"`
	Max      int     `json:"max"`
	Minutes  int     `json:"minutes"`
	Calories float64 `json:"caloriesOut"`
}

// Empty reports whether no metric was observed at all.
func (m *Metrics) Empty() bool {
	return m.SleepHours == nil &&
		m.SleepEfficiency == nil &&
		m.Username == nil &&
		m.Age == nil &&
		m.Weight == nil &&
		m.Height == nil &&
		m.Steps == nil &&
		m.CaloriesBurned == nil &&
		m.Distance == nil &&
		m.ActiveMinutes == nil &&
		m.RestingHeartRate == nil &&
		m.HeartRateZones == nil &&
		m.CaloriesConsumed == nil &&
		m.Protein == nil &&
		m.Carbs == nil &&
		m.Fat == nil &&
		m.WaterML == nil
}

// toFloat coerces a loosely typed JSON value into a float. Absent,
// null, empty-string and malformed values all come back as ok=false.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		if n == "" {
			return 0, false
		}
		var num json.Number = json.Number(n)
		f, err := num.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toInt coerces a loosely typed JSON value into an int.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func strPtr(s string) *string     { return &s }

package replay

import (
	"slices"
	"time"

	"SolarFeed/internal/model"
)

const (
	// FullDayRows is the row count a dataset day needs to be used as a profile.
	FullDayRows = 20
	// ForecastSource labels the forecast method in API responses.
	ForecastSource = "yesterday_profile"
)

// HourlyPoint is one hour of a forecast.
type HourlyPoint struct {
	Timestamp  string  `json:"timestamp"`
	Hour       int     `json:"hour"`
	Power      float64 `json:"power"`
	Irradiance float64 `json:"irradiance"`
}

// Forecast predicts the day after SourceDate by repeating that day's hourly
// means.
type Forecast struct {
	Source     string        `json:"source"`
	SourceDate string        `json:"source_date"`
	Points     []HourlyPoint `json:"forecast"`
}

// BuildForecast picks the most recent UTC day with at least FullDayRows
// records (the most recent day when none qualifies) and averages its power
// and irradiance per hour. Non-numeric cells count as 0. Hours without rows
// forecast 0.
func BuildForecast(records []model.Record) (Forecast, error) {
	byDate := map[string][]model.Record{}
	for _, r := range records {
		if r.Time.IsZero() {
			continue
		}
		key := r.Time.UTC().Format(time.DateOnly)
		byDate[key] = append(byDate[key], r)
	}
	if len(byDate) == 0 {
		return Forecast{}, ErrEmptyDataset
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	chosen := dates[len(dates)-1]
	for i := len(dates) - 1; i >= 0; i-- {
		if len(byDate[dates[i]]) >= FullDayRows {
			chosen = dates[i]
			break
		}
	}

	var sums [24]struct {
		power, irradiance float64
		n                 int
	}
	for _, r := range byDate[chosen] {
		h := r.Time.UTC().Hour()
		p, _ := r.Float("power")
		irr, _ := r.Float("irradiance")
		sums[h].power += p
		sums[h].irradiance += irr
		sums[h].n++
	}

	day, err := time.Parse(time.DateOnly, chosen)
	if err != nil {
		return Forecast{}, err
	}
	next := day.AddDate(0, 0, 1)

	f := Forecast{Source: ForecastSource, SourceDate: chosen, Points: make([]HourlyPoint, 24)}
	for h, s := range sums {
		pt := HourlyPoint{
			Timestamp: model.FormatTimestamp(next.Add(time.Duration(h) * time.Hour)),
			Hour:      h,
		}
		if s.n > 0 {
			pt.Power = s.power / float64(s.n)
			pt.Irradiance = s.irradiance / float64(s.n)
		}
		f.Points[h] = pt
	}
	return f, nil
}

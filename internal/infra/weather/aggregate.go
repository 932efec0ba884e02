package weather

import (
	"sort"
	"time"

	"telegram-weather-bot/internal/domain/model"
)

// tally counts strings and remembers first-seen order for tie breaking.
type tally struct {
	order  []string
	counts map[string]int
}

func (t *tally) add(s string) {
	if s == "" {
		return
	}
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, seen := t.counts[s]; !seen {
		t.order = append(t.order, s)
	}
	t.counts[s]++
}

// top returns the most frequent value; ties go to the first one seen.
func (t *tally) top() string {
	best, bestN := "", 0
	for _, s := range t.order {
		if n := t.counts[s]; n > bestN {
			best, bestN = s, n
		}
	}
	return best
}

type dayBucket struct {
	date                                  time.Time
	mins, maxs, temps, feels, hums, winds []float64
	conditions, descriptions              tally
}

func appendIf(dst []float64, v *float64) []float64 {
	if v == nil {
		return dst
	}
	return append(dst, *v)
}

func mean(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	m := sum / float64(len(vs))
	return &m
}

func extreme(vs []float64, less func(a, b float64) bool) *float64 {
	if len(vs) == 0 {
		return nil
	}
	x := vs[0]
	for _, v := range vs[1:] {
		if less(v, x) {
			x = v
		}
	}
	return &x
}

// localDate is the calendar day of a unix timestamp at the given UTC offset,
// expressed as midnight UTC of that day.
func localDate(unix int64, offsetSeconds int) time.Time {
	t := time.Unix(unix+int64(offsetSeconds), 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// aggregateDaily groups sub-daily entries by local calendar day, oldest first.
func aggregateDaily(entries []owmForecastEntry, offsetSeconds int) []model.ForecastDay {
	buckets := make(map[time.Time]*dayBucket)
	for _, e := range entries {
		d := localDate(e.Dt, offsetSeconds)
		b, ok := buckets[d]
		if !ok {
			b = &dayBucket{date: d}
			buckets[d] = b
		}
		b.mins = appendIf(b.mins, e.Main.TempMin)
		b.maxs = appendIf(b.maxs, e.Main.TempMax)
		b.temps = appendIf(b.temps, e.Main.Temp)
		b.feels = appendIf(b.feels, e.Main.FeelsLike)
		b.hums = appendIf(b.hums, e.Main.Humidity)
		b.winds = appendIf(b.winds, e.Wind.Speed)
		for _, w := range e.Weather {
			b.conditions.add(w.Main)
			b.descriptions.add(w.Description)
		}
	}

	days := make([]model.ForecastDay, 0, len(buckets))
	for _, b := range buckets {
		days = append(days, model.ForecastDay{
			Date:         b.date,
			TempMin:      extreme(b.mins, func(a, b float64) bool { return a < b }),
			TempMax:      extreme(b.maxs, func(a, b float64) bool { return a > b }),
			TempAvg:      mean(b.temps),
			FeelsLikeAvg: mean(b.feels),
			HumidityAvg:  mean(b.hums),
			WindSpeedAvg: mean(b.winds),
			Condition:    b.conditions.top(),
			Description:  b.descriptions.top(),
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

package usecase

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"telegram-weather-bot/internal/domain/model"
)

// Translator resolves user-facing message keys.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Formatter renders weather payloads as Telegram HTML in the bot language.
type Formatter struct {
	units     string
	tempUnit  string
	speedUnit string
	tr        Translator
}

// NewFormatter picks unit labels for the provider unit system.
func NewFormatter(units string, tr Translator) *Formatter {
	f := &Formatter{units: units, tr: tr}
	switch units {
	case "imperial":
		f.tempUnit, f.speedUnit = "°F", tr.T("unit_mph")
	case "standard":
		f.tempUnit, f.speedUnit = "K", tr.T("unit_ms")
	default:
		f.tempUnit, f.speedUnit = "°C", tr.T("unit_ms")
	}
	return f
}

// FormatCurrent renders an on-demand current-weather message.
func (f *Formatter) FormatCurrent(s *model.Snapshot) string {
	var b strings.Builder
	b.WriteString(f.tr.T("wx_current_header", weatherIcon(s.Condition, s.Description), html.EscapeString(s.City)))
	b.WriteString("\n\n")
	f.writeSnapshot(&b, s)
	return b.String()
}

// FormatDaily renders the scheduled daily message.
func (f *Formatter) FormatDaily(s *model.Snapshot) string {
	var b strings.Builder
	b.WriteString(f.tr.T("wx_daily_header", weatherIcon(s.Condition, s.Description), html.EscapeString(s.City)))
	b.WriteString("\n\n")
	f.writeSnapshot(&b, s)
	return b.String()
}

func (f *Formatter) writeSnapshot(b *strings.Builder, s *model.Snapshot) {
	desc := s.Description
	if desc == "" {
		desc = f.tr.T("wx_no_data")
	}
	b.WriteString(html.EscapeString(capitalize(desc)))
	b.WriteString("\n")
	b.WriteString(f.tr.T("wx_temperature", fmt.Sprintf("<b>%.1f%s</b>", s.Temperature, f.tempUnit)))
	b.WriteString("\n")
	b.WriteString(f.tr.T("wx_feels_like", fmt.Sprintf("<b>%.1f%s</b>", s.FeelsLike, f.tempUnit)))
	b.WriteString("\n")
	b.WriteString(f.tr.T("wx_humidity", fmt.Sprintf("%.0f%%", s.Humidity)))
	b.WriteString("\n")
	b.WriteString(f.tr.T("wx_wind", fmt.Sprintf("%.1f %s", s.WindSpeed, f.speedUnit)))
}

// FormatForecast renders one block per day.
func (f *Formatter) FormatForecast(fc *model.Forecast) string {
	parts := []string{f.tr.T("wx_forecast_header", len(fc.Days), html.EscapeString(fc.City))}
	for i, d := range fc.Days {
		parts = append(parts, f.formatDay(d, i+1))
	}
	return strings.Join(parts, "\n\n")
}

func (f *Formatter) formatDay(d model.ForecastDay, index int) string {
	desc := d.Description
	if desc == "" {
		desc = f.tr.T("wx_no_data")
	}
	lines := []string{f.tr.T("wx_forecast_day",
		index, d.Date.Format(f.tr.T("wx_date_layout")), weatherIcon(d.Condition, d.Description), html.EscapeString(capitalize(desc)))}

	switch {
	case d.TempMin != nil && d.TempMax != nil:
		lines = append(lines, f.tr.T("wx_range",
			fmt.Sprintf("<b>%.1f%s</b>", *d.TempMin, f.tempUnit),
			fmt.Sprintf("<b>%.1f%s</b>", *d.TempMax, f.tempUnit)))
	case d.TempAvg != nil:
		lines = append(lines, f.tr.T("wx_temperature", fmt.Sprintf("<b>%.1f%s</b>", *d.TempAvg, f.tempUnit)))
	default:
		lines = append(lines, f.tr.T("wx_temperature", f.tr.T("wx_no_data")))
	}
	lines = append(lines,
		f.tr.T("wx_feels_like_avg", f.optional(d.FeelsLikeAvg, "%.1f"+f.tempUnit)),
		f.tr.T("wx_humidity", f.optional(d.HumidityAvg, "%.0f%%")),
		f.tr.T("wx_wind", f.optional(d.WindSpeedAvg, "%.1f "+f.speedUnit)),
	)
	return strings.Join(lines, "\n")
}

func (f *Formatter) optional(v *float64, format string) string {
	if v == nil {
		return f.tr.T("wx_no_data")
	}
	return fmt.Sprintf(format, *v)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// weatherIcon picks an emoji from the provider condition group, falling back
// to keywords in the description (English and Russian).
func weatherIcon(condition, description string) string {
	cond := strings.ToLower(condition)
	desc := strings.ToLower(description)
	has := func(keywords ...string) bool {
		for _, k := range keywords {
			if strings.Contains(desc, k) {
				return true
			}
		}
		return false
	}

	switch {
	case cond == "thunderstorm" || has("гроза", "thunder"):
		return "⛈️"
	case cond == "drizzle" || has("морось", "drizzle"):
		return "🌦️"
	case cond == "rain" || has("дожд", "ливень", "rain"):
		return "🌧️"
	case cond == "snow" || has("снег", "snow"):
		return "❄️"
	case cond == "clear" || has("ясно", "clear"):
		return "☀️"
	case has("пасмур", "overcast"):
		return "☁️"
	case cond == "clouds" || has("облач", "cloud"):
		return "🌥️"
	case cond == "mist" || cond == "smoke" || cond == "haze" || cond == "fog" || has("туман", "дымка", "smog", "haze", "fog", "mist"):
		return "🌫️"
	case cond == "dust" || cond == "sand" || cond == "ash" || has("пыль", "песок", "dust", "sand"):
		return "🏜️"
	case cond == "squall" || has("шквал", "squall"):
		return "🌬️"
	case cond == "tornado" || has("торнадо", "tornado"):
		return "🌪️"
	}
	return "🌈"
}

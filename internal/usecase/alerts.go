package usecase

import (
	"html"
	"strings"

	"telegram-weather-bot/internal/domain/model"
)

// Thresholds are in °C and m/s; readings in other unit systems are converted first.
const (
	veryFrostThreshold    = -20.0
	frostThreshold        = -15.0
	veryHeatThreshold     = 35.0
	heatThreshold         = 30.0
	feelsLikeLowThreshold = -25.0
	strongWindThreshold   = 15.0

	mphToMS = 0.44704
)

// AlertReason is the translation key of one triggered rule.
type AlertReason string

const (
	ReasonVerySevereFrost AlertReason = "alert_very_severe_frost"
	ReasonSevereFrost     AlertReason = "alert_severe_frost"
	ReasonVerySevereHeat  AlertReason = "alert_very_severe_heat"
	ReasonHeat            AlertReason = "alert_heat"
	ReasonLowFeelsLike    AlertReason = "alert_low_feels_like"
	ReasonStrongWind      AlertReason = "alert_strong_wind"
	ReasonStorm           AlertReason = "alert_storm"
)

// stormKeywords are matched case-insensitively against the condition description.
var stormKeywords = []string{"storm", "thunderstorm", "blizzard", "гроза", "шторм", "буря", "метель"}

// toCelsius converts a provider temperature to °C.
func toCelsius(v float64, units string) float64 {
	switch units {
	case "imperial":
		return (v - 32) * 5 / 9
	case "standard":
		return v - 273.15
	default:
		return v
	}
}

// toMetersPerSecond converts a provider wind speed to m/s.
func toMetersPerSecond(v float64, units string) float64 {
	if units == "imperial" {
		return v * mphToMS
	}
	return v
}

// AlertReasons returns the triggered extreme-weather reasons for s, in rule
// order. units is the provider unit system the readings are expressed in.
func AlertReasons(s *model.Snapshot, units string) []AlertReason {
	if s == nil {
		return nil
	}
	var reasons []AlertReason

	temp := toCelsius(s.Temperature, units)
	switch {
	case temp <= veryFrostThreshold:
		reasons = append(reasons, ReasonVerySevereFrost)
	case temp <= frostThreshold:
		reasons = append(reasons, ReasonSevereFrost)
	case temp >= veryHeatThreshold:
		reasons = append(reasons, ReasonVerySevereHeat)
	case temp >= heatThreshold:
		reasons = append(reasons, ReasonHeat)
	}

	if toCelsius(s.FeelsLike, units) <= feelsLikeLowThreshold {
		reasons = append(reasons, ReasonLowFeelsLike)
	}
	if toMetersPerSecond(s.WindSpeed, units) >= strongWindThreshold {
		reasons = append(reasons, ReasonStrongWind)
	}

	desc := strings.ToLower(s.Description + " " + s.Condition)
	for _, kw := range stormKeywords {
		if strings.Contains(desc, kw) {
			reasons = append(reasons, ReasonStorm)
			break
		}
	}
	return reasons
}

// EvaluateAlert renders the extreme-weather warning for s. The bool is false
// when no rule triggered and nothing should be sent.
func (f *Formatter) EvaluateAlert(s *model.Snapshot) (string, bool) {
	reasons := AlertReasons(s, f.units)
	if len(reasons) == 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(f.tr.T("alert_header", html.EscapeString(s.City)))
	b.WriteString("\n\n")
	for _, r := range reasons {
		b.WriteString("• ")
		b.WriteString(f.tr.T(string(r)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(f.tr.T("alert_caution"))
	return b.String(), true
}

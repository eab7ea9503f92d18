package alerts

import (
	"math"
	"time"

	"weather-agent/internal/models"

	"github.com/google/uuid"
)

// Detection thresholds
const (
	minHistoryForTrends     = 3
	tempChangeThreshold     = 10.0
	tempChangeHighThreshold = 15.0
	pressureChangeThreshold = 20.0

	perfectDayMinTemp = 18.0
	perfectDayMaxTemp = 26.0
	perfectDayMaxWind = 15.0
	stargazingHour    = 21
	snowDayMaxTemp    = 2.0

	highUVThreshold      = 8.0
	extremeUVThreshold   = 10.0
	coldThreshold        = -5.0
	extremeColdThreshold = -15.0
	windThreshold        = 30.0
	extremeWindThreshold = 50.0
	heatThreshold        = 35.0
	extremeHeatThreshold = 40.0
	humidityThreshold    = 85.0
	humidityMinTemp      = 20.0
	goldilocksMinTemp    = 21.0
	goldilocksMaxTemp    = 23.0
)

// Input is everything a detector looks at for one check
type Input struct {
	Sample   models.WeatherSample
	History  []models.WeatherSample
	Location models.Location
	// Now is the check time in the location's timezone
	Now time.Time
}

func (in Input) messageContext() MessageContext {
	s := in.Sample
	return MessageContext{
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		UVIndex:     s.UVIndex,
		WindSpeed:   s.WindSpeed,
		Heavy:       s.WeatherCode >= models.CodeRainMin,
		Place:       in.Location.DisplayName(),
	}
}

// Composer turns detector hits into candidate alerts with IDs and wording
type Composer struct {
	rnd   RandomSource
	newID func() string
}

// NewComposer creates a composer; a nil source picks variants at random
func NewComposer(rnd RandomSource) *Composer {
	if rnd == nil {
		rnd = globalSource{}
	}
	return &Composer{rnd: rnd, newID: uuid.NewString}
}

func (c *Composer) alert(kind MessageKind, category models.Category, severity models.Severity, tag string, mc MessageContext, at time.Time) models.CandidateAlert {
	title, message := Compose(kind, mc, c.rnd)
	return models.CandidateAlert{
		ID:            string(kind) + "-" + c.newID(),
		Category:      category,
		Severity:      severity,
		Title:         title,
		Message:       message,
		ConditionTags: []string{tag},
		GeneratedAt:   at,
	}
}

// Detect runs every detector in a fixed order: unusual, opportunity, warning, interesting.
// The order is the selector's tie-break.
func (c *Composer) Detect(in Input) []models.CandidateAlert {
	var candidates []models.CandidateAlert
	candidates = append(candidates, c.DetectUnusual(in)...)
	candidates = append(candidates, c.DetectOpportunities(in)...)
	candidates = append(candidates, c.DetectWarnings(in)...)
	candidates = append(candidates, c.DetectInteresting(in)...)
	return candidates
}

// DetectUnusual compares the sample against history averages.
// Fewer than three history entries yields nothing.
func (c *Composer) DetectUnusual(in Input) []models.CandidateAlert {
	if len(in.History) < minHistoryForTrends {
		return nil
	}

	var sumTemp, sumPressure float64
	for _, h := range in.History {
		sumTemp += h.Temperature
		sumPressure += h.Pressure
	}
	n := float64(len(in.History))
	avgTemp := sumTemp / n
	avgPressure := sumPressure / n

	var alerts []models.CandidateAlert
	at := in.Now

	tempDiff := math.Abs(in.Sample.Temperature - avgTemp)
	if tempDiff > tempChangeThreshold {
		kind := KindTempDrop
		if in.Sample.Temperature > avgTemp {
			kind = KindWarmSpell
		}
		severity := models.SeverityMedium
		if tempDiff > tempChangeHighThreshold {
			severity = models.SeverityHigh
		}
		mc := in.messageContext()
		mc.TempDiff = tempDiff
		alerts = append(alerts, c.alert(kind, models.CategoryUnusual, severity, models.TagTemperatureChange, mc, at))
	}

	pressureDiff := math.Abs(in.Sample.Pressure - avgPressure)
	if pressureDiff > pressureChangeThreshold {
		kind := KindPressureDrop
		if in.Sample.Pressure > avgPressure {
			kind = KindPressureRise
		}
		alerts = append(alerts, c.alert(kind, models.CategoryInteresting, models.SeverityMedium, models.TagPressureChange, in.messageContext(), at))
	}

	return alerts
}

// DetectOpportunities looks for good conditions to get outside, using the local hour
func (c *Composer) DetectOpportunities(in Input) []models.CandidateAlert {
	var alerts []models.CandidateAlert
	s := in.Sample
	mc := in.messageContext()
	hour := in.Now.Hour()

	if s.WeatherCode <= models.CodeMainlyClear && s.Temperature >= perfectDayMinTemp && s.Temperature <= perfectDayMaxTemp && s.WindSpeed < perfectDayMaxWind {
		alerts = append(alerts, c.alert(KindPerfectDay, models.CategoryOpportunity, models.SeverityLow, models.TagPerfectWeather, mc, in.Now))
	}

	if s.WeatherCode <= models.CodeOvercast && ((hour >= 17 && hour <= 19) || (hour >= 6 && hour <= 8)) {
		if hour < 12 {
			alerts = append(alerts, c.alert(KindSunrise, models.CategoryOpportunity, models.SeverityLow, models.TagSunriseOpportunity, mc, in.Now))
		} else {
			alerts = append(alerts, c.alert(KindSunset, models.CategoryOpportunity, models.SeverityLow, models.TagSunsetOpportunity, mc, in.Now))
		}
	}

	if s.WeatherCode <= models.CodeMainlyClear && hour >= stargazingHour && s.UVIndex == 0 {
		alerts = append(alerts, c.alert(KindStargazing, models.CategoryOpportunity, models.SeverityLow, models.TagStargazing, mc, in.Now))
	}

	if s.WeatherCode >= models.CodeSnowMin && s.WeatherCode <= models.CodeSnowMax && s.Temperature < snowDayMaxTemp {
		alerts = append(alerts, c.alert(KindSnowDay, models.CategoryOpportunity, models.SeverityMedium, models.TagSnowOpportunity, mc, in.Now))
	}

	return alerts
}

// DetectWarnings evaluates each hazard independently
func (c *Composer) DetectWarnings(in Input) []models.CandidateAlert {
	var alerts []models.CandidateAlert
	s := in.Sample
	mc := in.messageContext()

	if s.WeatherCode >= models.CodeDrizzleMin && s.WeatherCode <= models.CodeFreezingRainMax {
		alerts = append(alerts, c.alert(KindRain, models.CategoryWarning, pick(s.WeatherCode >= models.CodeRainMin), models.TagRain, mc, in.Now))
	}

	if s.UVIndex >= highUVThreshold {
		alerts = append(alerts, c.alert(KindHighUV, models.CategoryWarning, pick(s.UVIndex >= extremeUVThreshold), models.TagHighUV, mc, in.Now))
	}

	if s.Temperature < coldThreshold {
		alerts = append(alerts, c.alert(KindExtremeCold, models.CategoryWarning, pick(s.Temperature < extremeColdThreshold), models.TagExtremeCold, mc, in.Now))
	}

	if s.WindSpeed > windThreshold {
		alerts = append(alerts, c.alert(KindHighWind, models.CategoryWarning, pick(s.WindSpeed > extremeWindThreshold), models.TagHighWind, mc, in.Now))
	}

	if s.Temperature > heatThreshold {
		alerts = append(alerts, c.alert(KindHeat, models.CategoryWarning, pick(s.Temperature > extremeHeatThreshold), models.TagExtremeHeat, mc, in.Now))
	}

	return alerts
}

// DetectInteresting flags curious but harmless conditions
func (c *Composer) DetectInteresting(in Input) []models.CandidateAlert {
	var alerts []models.CandidateAlert
	s := in.Sample
	mc := in.messageContext()

	if s.WeatherCode >= models.CodeFogMin && s.WeatherCode <= models.CodeFogMax {
		alerts = append(alerts, c.alert(KindFog, models.CategoryInteresting, models.SeverityLow, models.TagFog, mc, in.Now))
	}

	if s.Humidity > humidityThreshold && s.Temperature > humidityMinTemp {
		alerts = append(alerts, c.alert(KindHighHumidity, models.CategoryInteresting, models.SeverityLow, models.TagHighHumidity, mc, in.Now))
	}

	if s.Temperature >= goldilocksMinTemp && s.Temperature <= goldilocksMaxTemp {
		alerts = append(alerts, c.alert(KindPerfectTemp, models.CategoryInteresting, models.SeverityLow, models.TagPerfectTemperature, mc, in.Now))
	}

	return alerts
}

// pick returns high when severe, medium otherwise
func pick(severe bool) models.Severity {
	if severe {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is one observed quote for one outcome of a prediction
// market. Probability is the traded price in [0, 1].
type MarketSnapshot struct {
	Timestamp   time.Time       `json:"timestamp"`
	MarketID    string          `json:"marketId"`
	Outcome     string          `json:"outcome"`
	Probability decimal.Decimal `json:"probability"`
	Volume      decimal.Decimal `json:"volume"`
}

// Instrument identifies the tradeable unit. Multi-outcome markets trade
// each (market, outcome) pair independently.
func (m MarketSnapshot) Instrument() string {
	return m.MarketID + ":" + m.Outcome
}

// WeatherSnapshot is one observed weather reading for a location, plus
// rolling statistics derived by the data provider over its lookback
// window. Strategies read the derived fields, they never compute them.
type WeatherSnapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	Location        string    `json:"location"`
	TemperatureC    float64   `json:"temperatureC"`
	Humidity        float64   `json:"humidity"`
	WindSpeedKph    float64   `json:"windSpeedKph"`
	PrecipitationMM float64   `json:"precipitationMm"`

	// Derived over the provider lookback window.
	TempMean    float64 `json:"tempMean"`
	WindMean    float64 `json:"windMean"`
	PrecipTotal float64 `json:"precipTotal"`
}

// TimeSlice is everything visible at one simulated timestep: all market
// quotes for that step and the weather readings joined to it by
// nearest timestamp. Slices are immutable once produced and ordered by
// Time ascending.
type TimeSlice struct {
	Time    time.Time         `json:"time"`
	Markets []MarketSnapshot  `json:"markets"`
	Weather []WeatherSnapshot `json:"weather"`
}

package modality

import (
	"fmt"
	"sync"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func init() {
	Register(Weather,
		func() sim.ModalityState { return NewWeatherState() },
		func(data map[string]any) (sim.ModalityInput, error) {
			var input WeatherInput
			if err := decodeInto(data, &input); err != nil {
				return nil, err
			}
			return &input, nil
		},
	)
}

// Known weather conditions.
var weatherConditions = map[string]bool{
	"clear":    true,
	"cloudy":   true,
	"rain":     true,
	"snow":     true,
	"fog":      true,
	"storm":    true,
	"windy":    true,
	"overcast": true,
}

// WeatherReport is the current conditions for one region.
type WeatherReport struct {
	Condition    string  `json:"condition"`
	TemperatureC float64 `json:"temperature_c"`
	WindKPH      float64 `json:"wind_kph"`
	Humidity     int     `json:"humidity"`
}

// WeatherState holds the latest report per region; each update
// overwrites the region's previous conditions.
type WeatherState struct {
	mu      sync.Mutex
	regions map[string]WeatherReport
}

// NewWeatherState creates an empty weather state.
func NewWeatherState() *WeatherState {
	return &WeatherState{regions: make(map[string]WeatherReport)}
}

// ModalityType implements sim.ModalityState.
func (s *WeatherState) ModalityType() string { return Weather }

// ApplyInput overwrites a region's conditions.
func (s *WeatherState) ApplyInput(input sim.ModalityInput) error {
	in, ok := input.(*WeatherInput)
	if !ok {
		return fmt.Errorf("weather state cannot apply %T", input)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[in.Region] = WeatherReport{
		Condition:    in.Condition,
		TemperatureC: in.TemperatureC,
		WindKPH:      in.WindKPH,
		Humidity:     in.Humidity,
	}
	return nil
}

// Snapshot implements sim.ModalityState.
func (s *WeatherState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions := make(map[string]WeatherReport, len(s.regions))
	for region, report := range s.regions {
		regions[region] = report
	}
	return map[string]any{
		"region_count": len(regions),
		"regions":      regions,
	}
}

// ValidateState reports unknown conditions and out-of-range humidity.
func (s *WeatherState) ValidateState() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []string
	for region, report := range s.regions {
		if !weatherConditions[report.Condition] {
			findings = append(findings, fmt.Sprintf("region %q has unknown condition %q", region, report.Condition))
		}
		if report.Humidity < 0 || report.Humidity > 100 {
			findings = append(findings, fmt.Sprintf("region %q humidity %d out of range", region, report.Humidity))
		}
	}
	return findings
}

// Clear drops all regions.
func (s *WeatherState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = make(map[string]WeatherReport)
}

// Report returns the latest report for a region.
func (s *WeatherState) Report(region string) (WeatherReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.regions[region]
	return report, ok
}

// WeatherInput sets the conditions for one region.
type WeatherInput struct {
	Region       string  `json:"region"`
	Condition    string  `json:"condition"`
	TemperatureC float64 `json:"temperature_c"`
	WindKPH      float64 `json:"wind_kph"`
	Humidity     int     `json:"humidity"`
}

// ModalityType implements sim.ModalityInput.
func (in *WeatherInput) ModalityType() string { return Weather }

// Validate implements sim.ModalityInput.
func (in *WeatherInput) Validate() error {
	if in.Region == "" {
		return fmt.Errorf("weather input requires a region")
	}
	if !weatherConditions[in.Condition] {
		return fmt.Errorf("unknown weather condition %q", in.Condition)
	}
	if in.Humidity < 0 || in.Humidity > 100 {
		return fmt.Errorf("humidity %d out of range [0, 100]", in.Humidity)
	}
	return nil
}

// Summary implements sim.ModalityInput.
func (in *WeatherInput) Summary() string {
	return fmt.Sprintf("weather in %s: %s, %.1f°C", in.Region, in.Condition, in.TemperatureC)
}

// AffectedEntities returns the region.
func (in *WeatherInput) AffectedEntities() []string {
	return []string{in.Region}
}

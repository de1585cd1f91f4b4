package modality

import (
	"fmt"
	"sync"
	"time"

	"github.com/JBoggsy/ues-sub000/internal/sim"
)

func init() {
	Register(Calendar,
		func() sim.ModalityState { return NewCalendarState() },
		func(data map[string]any) (sim.ModalityInput, error) {
			var input CalendarInput
			if err := decodeInto(data, &input); err != nil {
				return nil, err
			}
			return &input, nil
		},
	)
}

// Appointment is one calendar entry.
type Appointment struct {
	AppointmentID string    `json:"appointment_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	LocationName  string    `json:"location,omitempty"`
	Attendees     []string  `json:"attendees,omitempty"`
}

// CalendarState holds appointments in insertion order.
type CalendarState struct {
	mu           sync.Mutex
	appointments []Appointment
}

// NewCalendarState creates an empty calendar.
func NewCalendarState() *CalendarState {
	return &CalendarState{}
}

// ModalityType implements sim.ModalityState.
func (s *CalendarState) ModalityType() string { return Calendar }

// ApplyInput adds an appointment. Fails on duplicate appointment ids.
func (s *CalendarState) ApplyInput(input sim.ModalityInput) error {
	in, ok := input.(*CalendarInput)
	if !ok {
		return fmt.Errorf("calendar state cannot apply %T", input)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, appt := range s.appointments {
		if appt.AppointmentID == in.AppointmentID {
			return fmt.Errorf("appointment %q already exists", in.AppointmentID)
		}
	}
	s.appointments = append(s.appointments, Appointment{
		AppointmentID: in.AppointmentID,
		Title:         in.Title,
		Start:         in.Start,
		End:           in.End,
		LocationName:  in.LocationName,
		Attendees:     append([]string(nil), in.Attendees...),
	})
	return nil
}

// Snapshot implements sim.ModalityState.
func (s *CalendarState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	appointments := make([]Appointment, len(s.appointments))
	copy(appointments, s.appointments)
	return map[string]any{
		"appointment_count": len(appointments),
		"appointments":      appointments,
	}
}

// ValidateState reports inverted time ranges and duplicate ids.
func (s *CalendarState) ValidateState() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []string
	seen := make(map[string]bool, len(s.appointments))
	for _, appt := range s.appointments {
		if seen[appt.AppointmentID] {
			findings = append(findings, fmt.Sprintf("duplicate appointment id %q", appt.AppointmentID))
		}
		seen[appt.AppointmentID] = true
		if !appt.End.After(appt.Start) {
			findings = append(findings, fmt.Sprintf("appointment %q ends at or before it starts", appt.AppointmentID))
		}
	}
	return findings
}

// Clear empties the calendar.
func (s *CalendarState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = nil
}

// AppointmentCount returns the number of appointments.
func (s *CalendarState) AppointmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appointments)
}

// CalendarInput adds one appointment.
type CalendarInput struct {
	AppointmentID string    `json:"appointment_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	LocationName  string    `json:"location,omitempty"`
	Attendees     []string  `json:"attendees,omitempty"`
}

// ModalityType implements sim.ModalityInput.
func (in *CalendarInput) ModalityType() string { return Calendar }

// Validate implements sim.ModalityInput.
func (in *CalendarInput) Validate() error {
	if in.AppointmentID == "" {
		return fmt.Errorf("calendar input requires an appointment_id")
	}
	if in.Title == "" {
		return fmt.Errorf("calendar input requires a title")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return fmt.Errorf("calendar input requires start and end times")
	}
	if !in.End.After(in.Start) {
		return fmt.Errorf("calendar input end %s must be after start %s",
			in.End.Format(time.RFC3339), in.Start.Format(time.RFC3339))
	}
	return nil
}

// Summary implements sim.ModalityInput.
func (in *CalendarInput) Summary() string {
	return fmt.Sprintf("appointment %q at %s", in.Title, in.Start.Format(time.RFC3339))
}

// AffectedEntities returns the appointment id and attendees.
func (in *CalendarInput) AffectedEntities() []string {
	entities := make([]string, 0, len(in.Attendees)+1)
	entities = append(entities, in.AppointmentID)
	entities = append(entities, in.Attendees...)
	return entities
}

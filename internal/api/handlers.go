package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JBoggsy/ues-sub000/internal/modality"
	"github.com/JBoggsy/ues-sub000/internal/sim"
)

// writeSimError maps a simulation error to an HTTP response:
// validation and out-of-range → 400, not-found → 404, lifecycle → 409.
func writeSimError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var se *sim.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sim.ErrCodeValidation, sim.ErrCodeOutOfRange:
			status = http.StatusBadRequest
		case sim.ErrCodeNotFound:
			status = http.StatusNotFound
		case sim.ErrCodeLifecycle:
			status = http.StatusConflict
		}
	}

	body := gin.H{"error": err.Error()}
	if se != nil {
		body["code"] = se.Code
	}
	c.JSON(status, body)
}

func (s *Server) snapshotHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Snapshot())
}

func (s *Server) validateHandler(c *gin.Context) {
	findings := s.sim.Validate()
	c.JSON(http.StatusOK, gin.H{
		"valid":    len(findings) == 0,
		"findings": findings,
	})
}

type startRequest struct {
	AutoAdvance bool    `json:"auto_advance"`
	TimeScale   float64 `json:"time_scale"`
}

func (s *Server) startHandler(c *gin.Context) {
	req := startRequest{TimeScale: 1.0}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
			return
		}
	}

	if err := s.sim.Start(req.AutoAdvance, req.TimeScale); err != nil {
		writeSimError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.sim.Snapshot())
}

func (s *Server) stopHandler(c *gin.Context) {
	summary := s.sim.Stop()
	if summary == nil {
		c.JSON(http.StatusOK, gin.H{"stopped": false, "reason": "simulation was not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true, "summary": summary})
}

func (s *Server) resetHandler(c *gin.Context) {
	s.sim.Reset()
	c.JSON(http.StatusOK, s.sim.Snapshot())
}

func (s *Server) pauseHandler(c *gin.Context) {
	s.sim.Pause()
	c.JSON(http.StatusOK, gin.H{"mode": s.sim.Clock().Mode()})
}

func (s *Server) resumeHandler(c *gin.Context) {
	s.sim.Resume()
	c.JSON(http.StatusOK, gin.H{"mode": s.sim.Clock().Mode()})
}

type advanceRequest struct {
	Duration string `json:"duration"`
}

func (s *Server) advanceHandler(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	delta, err := time.ParseDuration(req.Duration)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration: " + err.Error()})
		return
	}

	result, err := s.sim.AdvanceTime(delta)
	if err != nil {
		writeSimError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setTimeRequest struct {
	Time           time.Time `json:"time"`
	ExecuteSkipped bool      `json:"execute_skipped"`
}

func (s *Server) setTimeHandler(c *gin.Context) {
	var req setTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	result, err := s.sim.SetTime(req.Time, req.ExecuteSkipped)
	if err != nil {
		writeSimError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) skipNextHandler(c *gin.Context) {
	result, err := s.sim.SkipToNextEvent()
	if err != nil {
		writeSimError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) executeDueHandler(c *gin.Context) {
	records := s.sim.ExecuteDueEvents()
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// eventRequest is the wire shape for event submission. The payload is
// decoded by the modality registry into the typed input for the target
// modality.
type eventRequest struct {
	ID            string         `json:"id"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	Modality      string         `json:"modality"`
	Priority      int            `json:"priority"`
	AgentID       string         `json:"agent_id"`
	Payload       map[string]any `json:"payload"`
}

func (s *Server) addEventHandler(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if req.Modality == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "modality is required"})
		return
	}
	if req.ScheduledTime.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_time is required"})
		return
	}

	payload, err := modality.ParseInput(req.Modality, req.Payload)
	if err != nil {
		writeSimError(c, err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}

	// Creation is stamped in virtual time so replays of the same
	// timeline submit identically ordered events.
	event := sim.NewEvent(id, req.ScheduledTime, req.Modality, payload,
		sim.WithPriority(req.Priority),
		sim.WithAgentID(req.AgentID),
		sim.WithCreatedAt(s.sim.Clock().Current()),
	)

	if err := s.sim.AddEvent(event); err != nil {
		writeSimError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": event.ID, "status": event.Status})
}

// eventView is the wire shape for event queries.
type eventView struct {
	ID            string            `json:"id"`
	ScheduledTime time.Time         `json:"scheduled_time"`
	Modality      string            `json:"modality"`
	Status        sim.Status        `json:"status"`
	Priority      int               `json:"priority"`
	AgentID       string            `json:"agent_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ExecutedAt    *time.Time        `json:"executed_at,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (s *Server) queryEventsHandler(c *gin.Context) {
	filter := sim.EventFilter{
		Status:   sim.Status(c.Query("status")),
		Modality: c.Query("modality"),
		AgentID:  c.Query("agent_id"),
	}

	events := s.sim.QueryEvents(filter)
	views := make([]eventView, 0, len(events))
	for _, event := range events {
		view := eventView{
			ID:            event.ID,
			ScheduledTime: event.ScheduledTime,
			Modality:      event.Modality,
			Status:        event.Status,
			Priority:      event.Priority,
			AgentID:       event.AgentID,
			CreatedAt:     event.CreatedAt,
			ExecutedAt:    event.ExecutedAt,
			ErrorMessage:  event.ErrorMessage,
			Metadata:      event.Metadata,
		}
		if event.Payload != nil {
			view.Summary = event.Payload.Summary()
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"events": views, "count": len(views)})
}

func (s *Server) listModalitiesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modalities": s.sim.Environment().ListModalities()})
}

func (s *Server) modalityStateHandler(c *gin.Context) {
	state, err := s.sim.GetState(c.Param("name"))
	if err != nil {
		writeSimError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"modality": state.ModalityType(),
		"snapshot": state.Snapshot(),
	})
}

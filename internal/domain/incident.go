package domain

import "time"

type IncidentType string

const (
	IncidentLatencySpike   IncidentType = "latency_spike"
	IncidentHighErrorRate  IncidentType = "high_error_rate"
	IncidentTimeout        IncidentType = "timeout"
	IncidentCompleteOutage IncidentType = "complete_outage"
)

type IncidentSeverity string

const (
	SeverityMinor    IncidentSeverity = "minor"
	SeverityMajor    IncidentSeverity = "major"
	SeverityCritical IncidentSeverity = "critical"
)

type IncidentStatus string

const (
	IncidentActive        IncidentStatus = "active"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

// Incident — отслеживаемая запись о деградации.
// Инвариант хранилища: на эндпоинт не более одного инцидента со статусом != resolved.
type Incident struct {
	ID         string           `json:"id"` // UUID
	EndpointID string           `json:"endpoint_id"`
	Type       IncidentType     `json:"type"`
	Severity   IncidentSeverity `json:"severity"`
	Status     IncidentStatus   `json:"status"`

	Title       string `json:"title"`
	Description string `json:"description"`

	StartedAt  time.Time  `json:"started_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsOpen — инцидент считается открытым, пока не разрешен.
func (i *Incident) IsOpen() bool {
	return i.Status != IncidentResolved
}

// TimelineEntry — запись хронологии инцидента. Append-only: при слиянии
// инцидентов запись может сменить родителя, но содержимое не мутируется.
type TimelineEntry struct {
	ID         string         `json:"id"` // UUID
	IncidentID string         `json:"incident_id"`
	Status     IncidentStatus `json:"status"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
}

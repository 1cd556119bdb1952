package models

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleDispatcher = "dispatcher"
	RoleTechnician = "technician"
)

const (
	JobStatusPending    = "Pending"
	JobStatusInProgress = "In Progress"
	JobStatusCompleted  = "Completed"
	JobStatusCancelled  = "Cancelled"
)

const (
	JobPriorityLow    = "Low"
	JobPriorityMedium = "Medium"
	JobPriorityHigh   = "High"
)

const (
	ServiceTypeNewAccount  = "New Account"
	ServiceTypeReplacement = "Replacement"
	ServiceTypeTraining    = "Training"
	ServiceTypeMaintenance = "Maintenance"
)

const (
	RouteStatusPlanned    = "planned"
	RouteStatusDispatched = "dispatched"
	RouteStatusCompleted  = "completed"
)

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Skills       []string   `json:"skills"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Customer struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Street     string     `json:"street"`
	City       string     `json:"city"`
	State      string     `json:"state"`
	Zip        string     `json:"zip"`
	Lat        *float64   `json:"lat,omitempty"`
	Lng        *float64   `json:"lng,omitempty"`
	GeocodedAt *time.Time `json:"geocoded_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Job struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	CustomerID       int64      `json:"customer_id"`
	ServiceType      string     `json:"service_type"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	AssignedTo       *int64     `json:"assigned_to,omitempty"`
	ScheduledDate    *time.Time `json:"scheduled_date,omitempty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	CreatedBy        int64      `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	CustomerName   string `json:"customer_name,omitempty"`
	TechnicianName string `json:"technician_name,omitempty"`
}

type JobAttachment struct {
	ID           int64     `json:"id"`
	JobID        int64     `json:"job_id"`
	Kind         string    `json:"kind"`
	FilePath     string    `json:"file_path"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedBy   int64     `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type ActionLog struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	IP         string          `json:"ip"`
	UserAgent  string          `json:"user_agent"`
	CreatedAt  time.Time       `json:"created_at"`

	UserName string `json:"user_name,omitempty"`
}

type Session struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	RefreshToken string    `json:"-"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsRevoked    bool      `json:"is_revoked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type Route struct {
	ID              int64     `json:"id"`
	TechnicianID    int64     `json:"technician_id"`
	RouteDate       time.Time `json:"route_date"`
	Status          string    `json:"status"`
	Mode            string    `json:"mode"`
	TotalDistanceKm float64   `json:"total_distance_km"`
	TotalMinutes    float64   `json:"total_minutes"`
	FuelCost        float64   `json:"fuel_cost"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`

	TechnicianName string      `json:"technician_name,omitempty"`
	Stops          []RouteStop `json:"stops,omitempty"`
}

type RouteStop struct {
	ID            int64   `json:"id"`
	RouteID       int64   `json:"route_id"`
	JobID         int64   `json:"job_id"`
	Position      int     `json:"position"`
	LegDistanceKm float64 `json:"leg_distance_km"`
	LegMinutes    float64 `json:"leg_minutes"`

	JobName      string `json:"job_name,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

type TechnicianLocation struct {
	ID           int64     `json:"id"`
	TechnicianID int64     `json:"technician_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	AccuracyM    float64   `json:"accuracy_m,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`

	TechnicianName string `json:"technician_name,omitempty"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleDispatcher, RoleTechnician:
		return true
	}
	return false
}

func ValidJobStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

func ValidJobPriority(priority string) bool {
	switch priority {
	case JobPriorityLow, JobPriorityMedium, JobPriorityHigh:
		return true
	}
	return false
}

func ValidServiceType(serviceType string) bool {
	switch serviceType {
	case ServiceTypeNewAccount, ServiceTypeReplacement, ServiceTypeTraining, ServiceTypeMaintenance:
		return true
	}
	return false
}

func ValidRouteStatus(status string) bool {
	switch status {
	case RouteStatusPlanned, RouteStatusDispatched, RouteStatusCompleted:
		return true
	}
	return false
}

// CanDispatch reports whether a role may manage jobs, customers and routes.
func CanDispatch(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleDispatcher:
		return true
	}
	return false
}

// NormalizeJobStatus maps loose client casing onto the canonical enum value.
// Unknown values are returned trimmed so validation can reject them.
func NormalizeJobStatus(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending":
		return JobStatusPending
	case "in progress", "in_progress", "in-progress":
		return JobStatusInProgress
	case "completed", "done":
		return JobStatusCompleted
	case "cancelled", "canceled":
		return JobStatusCancelled
	default:
		return strings.TrimSpace(value)
	}
}

func NormalizeJobPriority(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return JobPriorityLow
	case "medium", "normal":
		return JobPriorityMedium
	case "high", "urgent":
		return JobPriorityHigh
	default:
		return strings.TrimSpace(value)
	}
}

func NormalizeServiceType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "new account", "new_account":
		return ServiceTypeNewAccount
	case "replacement":
		return ServiceTypeReplacement
	case "training":
		return ServiceTypeTraining
	case "maintenance":
		return ServiceTypeMaintenance
	default:
		return strings.TrimSpace(value)
	}
}

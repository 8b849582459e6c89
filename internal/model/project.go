package model

import "time"

// 项目状态
const (
	ProjectPlanned   = "planned"
	ProjectOngoing   = "ongoing"
	ProjectCompleted = "completed"
)

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	State       string    `json:"state" validate:"required,max=100"`
	District    string    `json:"district" validate:"required,max=100"`
	Block       string    `json:"block" validate:"max=100"`
	Village     string    `json:"village" validate:"max=100"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Budget      float64   `json:"budget" validate:"gte=0"`
	Status      string    `json:"status" validate:"required,oneof=planned ongoing completed"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Project) EntityID() string { return p.ID }
func (p *Project) SetID(id string) { p.ID = id }

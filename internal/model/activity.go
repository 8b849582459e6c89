package model

import "time"

// Kind 活动类型，对应后端资源路径 /api/{kind}
type Kind string

const (
	KindTraining          Kind = "trainings"
	KindAwareness         Kind = "awareness-programs"
	KindFLD               Kind = "flds"
	KindInfrastructure    Kind = "infrastructure"
	KindInputDistribution Kind = "input-distributions"
)

// ActivityKinds 所有带 target/achieved 的活动类型
var ActivityKinds = []Kind{
	KindTraining,
	KindAwareness,
	KindFLD,
	KindInfrastructure,
	KindInputDistribution,
}

// ParseKind 校验 URL 中的活动类型
func ParseKind(s string) (Kind, bool) {
	for _, k := range ActivityKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Beneficiaries 受益人数
type Beneficiaries struct {
	Male   int `json:"male" validate:"gte=0"`
	Female int `json:"female" validate:"gte=0"`
}

func (b Beneficiaries) Total() int { return b.Male + b.Female }

// ActivityBase 所有活动共享的字段
type ActivityBase struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id" validate:"required"`
	Title         string        `json:"title" validate:"required,min=3,max=200"`
	District      string        `json:"district" validate:"required,max=100"`
	Block         string        `json:"block" validate:"max=100"`
	Village       string        `json:"village" validate:"max=100"`
	Date          time.Time     `json:"date" validate:"required"`
	Target        int           `json:"target" validate:"gte=0"`
	Achieved      int           `json:"achieved" validate:"gte=0,ltefield=Target"`
	Beneficiaries Beneficiaries `json:"beneficiaries"`
	Remarks       string        `json:"remarks" validate:"max=1000"`
	Photos        []string      `json:"photos,omitempty" validate:"max=20,dive,url"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (a ActivityBase) EntityID() string { return a.ID }
func (a *ActivityBase) SetID(id string) { a.ID = id }

// Base 暴露共享字段，供报表统一统计
func (a ActivityBase) Base() ActivityBase { return a }

// Activity 由所有活动类型实现
type Activity interface {
	EntityID() string
	Base() ActivityBase
}

type TrainingProgram struct {
	ActivityBase
	Topic          string `json:"topic" validate:"required,max=200"`
	ResourcePerson string `json:"resource_person" validate:"max=200"`
	DurationDays   int    `json:"duration_days" validate:"gte=0,lte=365"`
}

type AwarenessProgram struct {
	ActivityBase
	Theme string `json:"theme" validate:"required,max=200"`
	Mode  string `json:"mode" validate:"required,oneof=camp rally meeting media"`
}

// FLD Field Level Demonstration
type FLD struct {
	ActivityBase
	Crop        string  `json:"crop" validate:"required,max=100"`
	Variety     string  `json:"variety" validate:"max=100"`
	AreaHectare float64 `json:"area_hectare" validate:"gte=0"`
	Farmers     int     `json:"farmers" validate:"gte=0"`
}

type InfrastructureActivity struct {
	ActivityBase
	InfrastructureType string  `json:"infrastructure_type" validate:"required,max=200"`
	Units              int     `json:"units" validate:"gte=0"`
	Cost               float64 `json:"cost" validate:"gte=0"`
}

type InputDistribution struct {
	ActivityBase
	InputType string  `json:"input_type" validate:"required,max=200"`
	Quantity  float64 `json:"quantity" validate:"gte=0"`
	Unit      string  `json:"unit" validate:"required,max=20"`
}

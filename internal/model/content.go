package model

import "time"

// 非活动类资源（公开站点展示）
const (
	ResourceEvents       = "events"
	ResourceGallery      = "gallery"
	ResourcePublications = "publications"
)

type UpcomingEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title" validate:"required,min=3,max=200"`
	Description      string    `json:"description" validate:"max=2000"`
	Venue            string    `json:"venue" validate:"required,max=200"`
	District         string    `json:"district" validate:"max=100"`
	EventDate        time.Time `json:"event_date" validate:"required,notpast"`
	Organizer        string    `json:"organizer" validate:"max=200"`
	RegistrationLink string    `json:"registration_link,omitempty" validate:"omitempty,url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (e UpcomingEvent) EntityID() string { return e.ID }
func (e *UpcomingEvent) SetID(id string) { e.ID = id }

type GalleryItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required,min=3,max=200"`
	Caption   string    `json:"caption" validate:"max=500"`
	ImageURL  string    `json:"image_url" validate:"required,url"`
	ImageKey  string    `json:"image_key,omitempty"`
	Category  string    `json:"category" validate:"max=100"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (g GalleryItem) EntityID() string { return g.ID }
func (g *GalleryItem) SetID(id string) { g.ID = id }

type Publication struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required,min=3,max=300"`
	Authors   []string  `json:"authors" validate:"required,min=1,dive,required,max=200"`
	Year      int       `json:"year" validate:"required,gte=1900,lte=2100"`
	Type      string    `json:"type" validate:"required,oneof=book leaflet article report"`
	FileURL   string    `json:"file_url,omitempty" validate:"omitempty,url"`
	FileKey   string    `json:"file_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Publication) EntityID() string { return p.ID }
func (p *Publication) SetID(id string) { p.ID = id }

// Category 活动分类
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (c Category) EntityID() string { return c.ID }
func (c *Category) SetID(id string) { c.ID = id }

// DefaultCategories 后端不可用且无缓存时使用
var DefaultCategories = []Category{
	{ID: "training", Name: "Training", Slug: string(KindTraining), Description: "Capacity building and training programs"},
	{ID: "awareness", Name: "Awareness", Slug: string(KindAwareness), Description: "Awareness campaigns, camps and rallies"},
	{ID: "fld", Name: "FLD", Slug: string(KindFLD), Description: "Field level demonstrations"},
	{ID: "infrastructure", Name: "Infrastructure", Slug: string(KindInfrastructure), Description: "Infrastructure development activities"},
	{ID: "input-distribution", Name: "Input Distribution", Slug: string(KindInputDistribution), Description: "Seed, tool and input distribution"},
}

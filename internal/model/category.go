package model

const (
	CategoryNameMaxLength = 20
	DefaultCategoryColor  = "#b624ff"
)

// Category groups tasks by area (work, health, study, etc.).
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

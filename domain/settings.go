package domain

// ViewMode selects how the dashboard renders tasks.
type ViewMode string

const (
	ViewList   ViewMode = "list"
	ViewKanban ViewMode = "kanban"
)

const (
	DefaultPageSize = 12
	DefaultSortBy   = "createdAt"
)

// Settings represents user configurable dashboard options.
type Settings struct {
	ViewMode ViewMode `json:"viewMode"`
	PageSize int      `json:"pageSize"`
	SortBy   string   `json:"sortBy"`
}

// DefaultSettings mirrors the dashboard's initial state.
func DefaultSettings() Settings {
	return Settings{ViewMode: ViewList, PageSize: DefaultPageSize, SortBy: DefaultSortBy}
}

// WithDefaults fills zero or unknown fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.ViewMode != ViewList && s.ViewMode != ViewKanban {
		s.ViewMode = d.ViewMode
	}
	if s.PageSize <= 0 {
		s.PageSize = d.PageSize
	}
	if s.SortBy == "" {
		s.SortBy = d.SortBy
	}
	return s
}

// Filters returns the listing filters implied by the settings for page.
func (s Settings) Filters(page int) Filters {
	s = s.WithDefaults()
	if page <= 0 {
		page = 1
	}
	return Filters{SortBy: s.SortBy, Page: page, Limit: s.PageSize}
}

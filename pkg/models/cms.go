package models

// SiteSettings toggles the seasonal themes of the public site.
type SiteSettings struct {
	IsChristmas bool `json:"is_christmas"`
	IsHalloween bool `json:"is_halloween"`
}

// ThemeClass is the CSS class the layout adds for the active theme.
func (s SiteSettings) ThemeClass() string {
	switch {
	case s.IsChristmas:
		return "theme-christmas"
	case s.IsHalloween:
		return "theme-halloween"
	}
	return ""
}

// HomePage is what the front page shows: one primary article and the
// secondary slots in publication order.
type HomePage struct {
	Primary     *Article  `json:"primary,omitempty"`
	Secondaries []Article `json:"secondaries"`
}

package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed navigation.yaml
var navigationYAML []byte

// Navigation is the static site chrome: names, description and menu links.
type Navigation struct {
	SiteName        string    `yaml:"site_name" json:"site_name"`
	SiteNameShort   string    `yaml:"site_name_short" json:"site_name_short"`
	SiteDescription string    `yaml:"site_description" json:"site_description"`
	Copyright       string    `yaml:"copyright" json:"copyright"`
	Links           []NavLink `yaml:"links" json:"links"`
}

type NavLink struct {
	Label    string    `yaml:"label" json:"label"`
	URL      string    `yaml:"url" json:"url"`
	Children []NavLink `yaml:"children,omitempty" json:"children,omitempty"`
}

// LoadNavigation decodes the embedded navigation document.
func LoadNavigation() (Navigation, error) {
	var nav Navigation
	if err := yaml.Unmarshal(navigationYAML, &nav); err != nil {
		return Navigation{}, fmt.Errorf("parse navigation: %w", err)
	}
	return nav, nil
}

// Link returns the top-level link with the given label.
func (n Navigation) Link(label string) (NavLink, bool) {
	for _, l := range n.Links {
		if l.Label == label {
			return l, true
		}
	}
	return NavLink{}, false
}

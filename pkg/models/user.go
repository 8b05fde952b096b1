package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Permissions are the editor capabilities granted to a user.
type Permissions struct {
	Post              bool `json:"post"`
	EditAny           bool `json:"edit_any"`
	EditOwn           bool `json:"edit_own"`
	EditUsers         bool `json:"edit_users"`
	CreateUsers       bool `json:"create_users"`
	DeleteUsers       bool `json:"delete_users"`
	EditHomepage      bool `json:"edit_homepage"`
	ReviewSubmissions bool `json:"review_submissions"`
}

// User is an editor account; articles reference users as their authors.
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Permissions  Permissions `json:"permissions"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (p *Permissions) flags() map[string]*bool {
	return map[string]*bool{
		"post":               &p.Post,
		"edit-any":           &p.EditAny,
		"edit-own":           &p.EditOwn,
		"edit-users":         &p.EditUsers,
		"create-users":       &p.CreateUsers,
		"delete-users":       &p.DeleteUsers,
		"edit-homepage":      &p.EditHomepage,
		"review-submissions": &p.ReviewSubmissions,
	}
}

// ParsePermissions turns names like "edit-any" into a Permissions value.
// "all" grants everything.
func ParsePermissions(names []string) (Permissions, error) {
	var p Permissions
	flags := p.flags()
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if name == "all" {
			for _, f := range flags {
				*f = true
			}
			continue
		}
		f, ok := flags[name]
		if !ok {
			return Permissions{}, fmt.Errorf("unknown permission %q", raw)
		}
		*f = true
	}
	return p, nil
}

// PermissionNames lists every permission name ParsePermissions accepts, sorted.
func PermissionNames() []string {
	var p Permissions
	names := make([]string, 0, 8)
	for name := range p.flags() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names lists granted permissions, sorted.
func (p Permissions) Names() []string {
	var names []string
	for name, f := range p.flags() {
		if *f {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// CanEditArticle reports whether the user may modify an article written by authorID.
func (u User) CanEditArticle(authorID string) bool {
	return u.Permissions.EditAny || (u.Permissions.EditOwn && u.ID == authorID)
}

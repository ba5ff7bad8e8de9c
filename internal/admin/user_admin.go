// Package admin describes how users are presented and edited in the administrative interface.
// It holds declarative descriptors and a changelist query builder; rendering is left to callers.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"authentico/internal/user/domain"
	"authentico/internal/user/repository"
)

// DefaultPerPage is the changelist page size when none is requested.
const DefaultPerPage = 100

// ErrUnknownField is returned when a descriptor or request names a field the user record does not have.
var ErrUnknownField = errors.New("admin: unknown field")

// userFields are the field names an admin descriptor may reference.
var userFields = map[string]bool{
	"id":               true,
	"email":            true,
	"password":         true,
	"password1":        true,
	"password2":        true,
	"first_name":       true,
	"last_name":        true,
	"is_active":        true,
	"is_staff":         true,
	"is_superuser":     true,
	"is_public":        true,
	"groups":           true,
	"user_permissions": true,
	"last_login":       true,
	"date_joined":      true,
}

// Fieldset is a titled group of form fields.
type Fieldset struct {
	Name    string
	Fields  []string
	Classes []string
}

// ModelAdmin is the declarative admin description of a model.
type ModelAdmin struct {
	// Fieldsets lay out the edit form.
	Fieldsets []Fieldset
	// AddFieldsets lay out the create form.
	AddFieldsets     []Fieldset
	ListDisplay      []string
	ListFilter       []string
	SearchFields     []string
	Ordering         []string
	FilterHorizontal []string
}

// NewUserAdmin returns the admin description for users.
func NewUserAdmin() *ModelAdmin {
	return &ModelAdmin{
		Fieldsets: []Fieldset{
			{Name: "Required info", Fields: []string{"email", "password"}},
			{Name: "Personal info", Fields: []string{"first_name", "last_name"}},
			{Name: "Permissions", Fields: []string{"is_active", "is_staff", "is_superuser", "groups", "user_permissions"}},
			{Name: "Important dates", Fields: []string{"last_login", "date_joined"}},
		},
		AddFieldsets: []Fieldset{
			{Name: "Required info", Fields: []string{"email", "password1", "password2"}, Classes: []string{"wide"}},
		},
		ListDisplay:      []string{"email", "first_name", "last_name", "is_staff", "id"},
		ListFilter:       []string{"is_staff", "is_superuser", "is_active", "groups"},
		SearchFields:     []string{"first_name", "last_name", "email", "id"},
		Ordering:         []string{"email"},
		FilterHorizontal: []string{"groups", "user_permissions"},
	}
}

// Validate checks that every field the description names is a known user field.
func (a *ModelAdmin) Validate() error {
	check := func(where string, fields []string) error {
		for _, f := range fields {
			if !userFields[strings.TrimPrefix(f, "-")] {
				return fmt.Errorf("%w: %q in %s", ErrUnknownField, f, where)
			}
		}
		return nil
	}
	for _, fs := range a.Fieldsets {
		if err := check("fieldset "+fs.Name, fs.Fields); err != nil {
			return err
		}
	}
	for _, fs := range a.AddFieldsets {
		if err := check("add fieldset "+fs.Name, fs.Fields); err != nil {
			return err
		}
	}
	for _, c := range []struct {
		where  string
		fields []string
	}{
		{"list_display", a.ListDisplay},
		{"list_filter", a.ListFilter},
		{"search_fields", a.SearchFields},
		{"ordering", a.Ordering},
		{"filter_horizontal", a.FilterHorizontal},
	} {
		if err := check(c.where, c.fields); err != nil {
			return err
		}
	}
	return nil
}

// ChangelistParams is a changelist request as it arrives from a caller.
type ChangelistParams struct {
	Search string
	// Filters maps a ListFilter field to its raw value ("true"/"false" for flags, a group ID for groups).
	Filters map[string]string
	// Ordering overrides the admin's default ordering.
	Ordering []string
	// Page is 1-based; zero means the first page.
	Page    int
	PerPage int
}

// Lister lists users. Satisfied by repository.Repository.
type Lister interface {
	List(ctx context.Context, p repository.ListParams) ([]*domain.User, error)
}

// Changelist is one page of users with the ListDisplay columns rendered as strings.
type Changelist struct {
	Columns []string
	Rows    [][]string
	Users   []*domain.User
	Page    int
	PerPage int
}

// ListParams converts a changelist request into repository list parameters.
// Only declared filters are accepted; ordering columns must be sortable.
func (a *ModelAdmin) ListParams(p ChangelistParams) (repository.ListParams, error) {
	out := repository.ListParams{}
	if len(a.SearchFields) > 0 {
		out.Search = strings.TrimSpace(p.Search)
	}

	allowed := make(map[string]bool, len(a.ListFilter))
	for _, f := range a.ListFilter {
		allowed[f] = true
	}
	for name, raw := range p.Filters {
		if !allowed[name] {
			return repository.ListParams{}, fmt.Errorf("%w: filter %q", ErrUnknownField, name)
		}
		if name == "groups" {
			out.GroupID = strings.TrimSpace(raw)
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return repository.ListParams{}, fmt.Errorf("admin: filter %q: invalid value %q", name, raw)
		}
		switch name {
		case "is_staff":
			out.IsStaff = &v
		case "is_superuser":
			out.IsSuperuser = &v
		case "is_active":
			out.IsActive = &v
		default:
			return repository.ListParams{}, fmt.Errorf("%w: filter %q", ErrUnknownField, name)
		}
	}

	ordering := p.Ordering
	if len(ordering) == 0 {
		ordering = a.Ordering
	}
	for _, o := range ordering {
		if !repository.SortableColumns[strings.TrimPrefix(o, "-")] {
			return repository.ListParams{}, fmt.Errorf("%w: ordering %q", ErrUnknownField, o)
		}
	}
	out.Ordering = append([]string(nil), ordering...)

	perPage := p.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	out.Limit = perPage
	out.Offset = (page - 1) * perPage
	return out, nil
}

// Changelist lists one page of users for the changelist view.
func (a *ModelAdmin) Changelist(ctx context.Context, lister Lister, p ChangelistParams) (*Changelist, error) {
	lp, err := a.ListParams(p)
	if err != nil {
		return nil, err
	}
	users, err := lister.List(ctx, lp)
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	cl := &Changelist{
		Columns: append([]string(nil), a.ListDisplay...),
		Rows:    make([][]string, 0, len(users)),
		Users:   users,
		Page:    lp.Offset/lp.Limit + 1,
		PerPage: lp.Limit,
	}
	for _, u := range users {
		row := make([]string, len(a.ListDisplay))
		for i, col := range a.ListDisplay {
			row[i] = Cell(u, col)
		}
		cl.Rows = append(cl.Rows, row)
	}
	return cl, nil
}

// Cell renders one user field for display. Unknown or non-scalar fields render empty.
func Cell(u *domain.User, field string) string {
	switch field {
	case "id":
		return u.ID
	case "email":
		return u.Email
	case "first_name":
		return u.FirstName
	case "last_name":
		return u.LastName
	case "is_active":
		return strconv.FormatBool(u.IsActive)
	case "is_staff":
		return strconv.FormatBool(u.IsStaff)
	case "is_superuser":
		return strconv.FormatBool(u.IsSuperuser)
	case "is_public":
		return strconv.FormatBool(u.IsPublic)
	case "date_joined":
		return formatTime(&u.DateJoined)
	case "last_login":
		return formatTime(u.LastLogin)
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

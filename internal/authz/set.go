package authz

import "sort"

// Set is a set of permission strings in "app_label.codename" form.
type Set map[string]struct{}

// NewSet returns a set holding perms.
func NewSet(perms ...string) Set {
	s := make(Set, len(perms))
	s.Add(perms...)
	return s
}

func (s Set) Add(perms ...string) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

func (s Set) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Union adds every member of o to s.
func (s Set) Union(o Set) {
	for p := range o {
		s[p] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	out.Union(s)
	return out
}

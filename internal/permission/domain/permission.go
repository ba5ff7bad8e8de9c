package domain

import (
	"fmt"
	"strings"
)

// Permission is a named capability scoped to an application label.
type Permission struct {
	ID       string
	AppLabel string
	Codename string
	Name     string
}

// String returns the "app_label.codename" form used in permission checks.
func (p Permission) String() string {
	return p.AppLabel + "." + p.Codename
}

// Group bundles permissions granted to all of its members.
type Group struct {
	ID   string
	Name string
}

// ParsePermission splits "app_label.codename" at the first dot.
func ParsePermission(s string) (appLabel, codename string, err error) {
	appLabel, codename, ok := strings.Cut(s, ".")
	if !ok || appLabel == "" || codename == "" {
		return "", "", fmt.Errorf("permission %q is not of the form app_label.codename", s)
	}
	return appLabel, codename, nil
}

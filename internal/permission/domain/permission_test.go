package domain

import "testing"

func TestPermission_String(t *testing.T) {
	p := Permission{AppLabel: "users", Codename: "change_user"}
	if got := p.String(); got != "users.change_user" {
		t.Errorf("String = %q", got)
	}
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in        string
		app, code string
		wantErr   bool
	}{
		{"users.add_user", "users", "add_user", false},
		{"a.b.c", "a", "b.c", false},
		{"nodot", "", "", true},
		{".x", "", "", true},
		{"x.", "", "", true},
	}
	for _, tt := range tests {
		app, code, err := ParsePermission(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePermission(%q) err = %v", tt.in, err)
			continue
		}
		if app != tt.app || code != tt.code {
			t.Errorf("ParsePermission(%q) = %q, %q", tt.in, app, code)
		}
	}
}

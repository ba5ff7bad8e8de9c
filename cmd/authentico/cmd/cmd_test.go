package cmd

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"authentico/internal/app"
	"authentico/internal/authz"
	"authentico/internal/user/domain"
)

func TestResolvePassword(t *testing.T) {
	testCases := []struct {
		name    string
		flag    string
		stdin   bool
		input   string
		want    string
		wantErr bool
	}{
		{name: "flag", flag: "s3cret!", want: "s3cret!"},
		{name: "empty flag", want: ""},
		{name: "stdin line", stdin: true, input: "hunter22\nignored\n", want: "hunter22"},
		{name: "stdin crlf", stdin: true, input: "hunter22\r\n", want: "hunter22"},
		{name: "stdin no newline", stdin: true, input: "hunter22", want: "hunter22"},
		{name: "both", flag: "x", stdin: true, input: "y\n", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePassword(tc.flag, tc.stdin, strings.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("resolvePassword should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolvePassword: %v", err)
			}
			if got != tc.want {
				t.Errorf("resolvePassword = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseFilterArgs(t *testing.T) {
	got, err := parseFilterArgs([]string{"is_staff=true", " groups = g1 "})
	if err != nil {
		t.Fatalf("parseFilterArgs: %v", err)
	}
	want := map[string]string{"is_staff": "true", "groups": "g1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseFilterArgs = %v, want %v", got, want)
	}

	if got, err := parseFilterArgs(nil); err != nil || got != nil {
		t.Errorf("parseFilterArgs(nil) = %v, %v", got, err)
	}
	for _, bad := range []string{"is_staff", "=true"} {
		if _, err := parseFilterArgs([]string{bad}); err == nil {
			t.Errorf("parseFilterArgs(%q) should return error", bad)
		}
	}
}

func TestObjectFromFlags(t *testing.T) {
	obj, err := objectFromFlags("", "", nil)
	if err != nil || obj != nil {
		t.Errorf("global check = %v, %v", obj, err)
	}

	obj, err = objectFromFlags("document", "42", []string{"owner_id=abc"})
	if err != nil {
		t.Fatalf("objectFromFlags: %v", err)
	}
	if obj.Type != "document" || obj.ID != "42" || obj.Attributes["owner_id"] != "abc" {
		t.Errorf("object = %+v", obj)
	}

	if _, err := objectFromFlags("document", "", nil); err == nil {
		t.Error("type without id should fail")
	}
	if _, err := objectFromFlags("", "", []string{"owner_id=abc"}); err == nil {
		t.Error("attributes without object should fail")
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"checkperm", "createsuperuser", "createuser", "migrate", "perms", "serve", "users"}
	var got []string
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		got = append(got, c.Name())
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
	for _, name := range []string{"createuser", "createsuperuser"} {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("Find(%s): %v", name, err)
		}
		for _, flag := range []string{"email", "password", "stdin"} {
			if c.Flags().Lookup(flag) == nil {
				t.Errorf("%s missing --%s", name, flag)
			}
		}
	}
	if c, _, err := rootCmd.Find([]string{"users", "list"}); err != nil || c.Name() != "list" {
		t.Errorf("users list not found: %v", err)
	}
}

func TestCreateOptions_Public(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want bool
	}{
		{name: "default keeps public", args: []string{"--email", "a@x.com"}, want: true},
		{name: "explicit true", args: []string{"--email", "a@x.com", "--public"}, want: true},
		{name: "explicit false", args: []string{"--email", "a@x.com", "--public=false"}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var f createFlags
			c := &cobra.Command{Use: "createuser"}
			addCreateFlags(c, &f)
			if err := c.ParseFlags(tc.args); err != nil {
				t.Fatalf("ParseFlags: %v", err)
			}

			u := &domain.User{IsPublic: true}
			for _, opt := range createOptions(c, &f) {
				opt(u)
			}
			if u.IsPublic != tc.want {
				t.Errorf("IsPublic = %v, want %v", u.IsPublic, tc.want)
			}
		})
	}

	if def := createUserCmd.Flags().Lookup("public").DefValue; def != "true" {
		t.Errorf("--public default = %q, want true", def)
	}
}

func TestCasbinGrantAndJoin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	b, err := authz.NewCasbinBackend(path)
	if err != nil {
		t.Fatalf("NewCasbinBackend: %v", err)
	}
	userID := domain.NewID()
	if err := casbinGrant(b, "auditors", "users.view_user"); err != nil {
		t.Fatalf("casbinGrant: %v", err)
	}
	if err := casbinJoin(b, userID, "auditors"); err != nil {
		t.Fatalf("casbinJoin: %v", err)
	}
	if err := casbinGrant(b, userID, "malformed"); err == nil {
		t.Error("casbinGrant should reject a malformed permission")
	}

	reloaded, err := authz.NewCasbinBackend(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	u := &domain.User{ID: userID, IsActive: true}
	if ok, err := reloaded.HasPerm(context.Background(), u, "users.view_user", nil); err != nil || !ok {
		t.Errorf("HasPerm after reload = %v, %v", ok, err)
	}
}

func TestCasbinFor(t *testing.T) {
	if _, err := casbinFor(&app.App{}); err == nil {
		t.Error("casbinFor without a casbin backend should fail")
	}
	b, err := authz.NewCasbinBackend("")
	if err != nil {
		t.Fatalf("NewCasbinBackend: %v", err)
	}
	if p, err := casbinFor(&app.App{Casbin: b}); err != nil || p == nil {
		t.Errorf("casbinFor = %v, %v", p, err)
	}
}

func TestCheckGrantBackend(t *testing.T) {
	for _, name := range []string{"model", "casbin"} {
		if err := checkGrantBackend(name); err != nil {
			t.Errorf("checkGrantBackend(%q) = %v", name, err)
		}
	}
	if err := checkGrantBackend("opa"); err == nil {
		t.Error("opa has no write side")
	}
}

func TestAuthorizingFlags(t *testing.T) {
	cases := [][]string{
		{"checkperm"},
		{"users", "list"},
	}
	for _, path := range cases {
		c, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("Find(%v): %v", path, err)
		}
		if c.Flags().Lookup("as") == nil {
			t.Errorf("%v missing --as", path)
		}
	}
	for _, path := range [][]string{{"perms", "grant"}, {"perms", "join"}} {
		c, _, err := rootCmd.Find(path)
		if err != nil {
			t.Fatalf("Find(%v): %v", path, err)
		}
		if f := c.Flags().Lookup("backend"); f == nil || f.DefValue != "model" {
			t.Errorf("%v --backend = %v", path, f)
		}
	}
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"authentico/internal/app"
	"authentico/internal/user/domain"
	"authentico/internal/user/service"
)

type createFlags struct {
	email     string
	password  string
	stdin     bool
	firstName string
	lastName  string
	public    bool
}

var (
	createUserFlags      createFlags
	createSuperuserFlags createFlags
)

var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Create a user",
	Long: `Creates an active, non-staff user. Without --password or --stdin the account
gets an unusable password and cannot log in until one is set.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		return runCreate(cobraCmd, &createUserFlags, false)
	},
}

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create a superuser",
	Long:  `Creates an active user with staff and superuser status. Superusers hold every permission.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		return runCreate(cobraCmd, &createSuperuserFlags, true)
	},
}

func runCreate(cobraCmd *cobra.Command, f *createFlags, superuser bool) error {
	password, err := resolvePassword(f.password, f.stdin, cobraCmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cobraCmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	opts := createOptions(cobraCmd, f)
	create := a.Manager.CreateUser
	kind := "user"
	if superuser {
		create = a.Manager.CreateSuperuser
		kind = "superuser"
	}
	u, err := create(ctx, f.email, password, opts...)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid %s: %w", kind, verr)
		}
		return fmt.Errorf("failed to create %s: %w", kind, err)
	}

	pterm.Success.Printf("Created %s %s\n", kind, u.Email)
	pterm.Info.Printf("ID: %s\n", u.ID)
	if !u.HasUsablePassword() {
		pterm.Warning.Println("No password set; the account cannot log in until one is set.")
	}
	return nil
}

// createOptions maps the flags to creation options. --public is applied only when given,
// so users keep the record default (public) otherwise.
func createOptions(cobraCmd *cobra.Command, f *createFlags) []service.Option {
	opts := []service.Option{
		service.WithFirstName(f.firstName),
		service.WithLastName(f.lastName),
	}
	if cobraCmd.Flags().Changed("public") {
		opts = append(opts, service.WithPublic(f.public))
	}
	return opts
}

// resolvePassword picks the password from the flag or, with fromStdin, the first line of r.
func resolvePassword(flagValue string, fromStdin bool, r io.Reader) (string, error) {
	if !fromStdin {
		return flagValue, nil
	}
	if flagValue != "" {
		return "", errors.New("use either --password or --stdin, not both")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func addCreateFlags(cmd *cobra.Command, f *createFlags) {
	cmd.Flags().StringVar(&f.email, "email", "", "Email address (login handle)")
	cmd.Flags().StringVar(&f.password, "password", "", "Password (prefer --stdin)")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "Read the password from the first line of stdin")
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "Last name")
	cmd.Flags().BoolVar(&f.public, "public", true, "Whether the profile is public (--public=false hides it)")
	_ = cmd.MarkFlagRequired("email")
}

func init() {
	addCreateFlags(createUserCmd, &createUserFlags)
	addCreateFlags(createSuperuserCmd, &createSuperuserFlags)
}

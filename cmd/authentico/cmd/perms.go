package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"authentico/internal/app"
	"authentico/internal/config"
)

var permsCmd = &cobra.Command{
	Use:   "perms",
	Short: "Manage permission grants",
	Long: `Grants permissions and group memberships. With --backend model (the default) the
rows read by the model backend are written; with --backend casbin the Casbin policy
file (CASBIN_POLICY_PATH) is updated, groups becoming Casbin roles.`,
}

// casbinPolicy is the write side of the Casbin backend.
type casbinPolicy interface {
	AddPermission(subject, perm string) error
	AddRoleForUser(userID, role string) error
	Save() error
}

func casbinGrant(p casbinPolicy, subject, perm string) error {
	if err := p.AddPermission(subject, perm); err != nil {
		return err
	}
	return p.Save()
}

func casbinJoin(p casbinPolicy, userID, role string) error {
	if err := p.AddRoleForUser(userID, role); err != nil {
		return err
	}
	return p.Save()
}

// casbinFor returns the configured Casbin backend, or an error when --backend casbin is
// used without it.
func casbinFor(a *app.App) (casbinPolicy, error) {
	if a.Casbin == nil {
		return nil, errors.New("casbin backend is not enabled in AUTH_BACKENDS")
	}
	return a.Casbin, nil
}

func checkGrantBackend(name string) error {
	switch name {
	case config.BackendModel, config.BackendCasbin:
		return nil
	default:
		return fmt.Errorf("--backend must be %s or %s, got %q", config.BackendModel, config.BackendCasbin, name)
	}
}

var (
	grantEmail   string
	grantGroup   string
	grantPerm    string
	grantBackend string
)

var permsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant a permission to a user or a group",
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		if (grantEmail == "") == (grantGroup == "") {
			return errors.New("exactly one of --email or --group is required")
		}
		if err := checkGrantBackend(grantBackend); err != nil {
			return err
		}
		ctx := cobraCmd.Context()
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if grantBackend == config.BackendCasbin {
			policy, err := casbinFor(a)
			if err != nil {
				return err
			}
			subject, label := grantGroup, "role "+grantGroup
			if grantEmail != "" {
				u, err := lookupUser(ctx, a, grantEmail)
				if err != nil {
					return err
				}
				subject, label = u.ID, u.Email
			}
			if err := casbinGrant(policy, subject, grantPerm); err != nil {
				return err
			}
			pterm.Success.Printf("Granted %s to %s in the casbin policy\n", grantPerm, label)
			return nil
		}

		if grantGroup != "" {
			p, err := a.Grants.GrantToGroup(ctx, grantGroup, grantPerm)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Granted %s to group %s\n", p, grantGroup)
			return nil
		}
		u, err := lookupUser(ctx, a, grantEmail)
		if err != nil {
			return err
		}
		p, err := a.Grants.GrantToUser(ctx, u.ID, grantPerm)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Granted %s to %s\n", p, u.Email)
		return nil
	},
}

var (
	joinEmail   string
	joinGroup   string
	joinBackend string
)

var permsJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Add a user to a group",
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		if err := checkGrantBackend(joinBackend); err != nil {
			return err
		}
		ctx := cobraCmd.Context()
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		u, err := lookupUser(ctx, a, joinEmail)
		if err != nil {
			return err
		}
		if joinBackend == config.BackendCasbin {
			policy, err := casbinFor(a)
			if err != nil {
				return err
			}
			if err := casbinJoin(policy, u.ID, joinGroup); err != nil {
				return err
			}
			pterm.Success.Printf("Added %s to role %s in the casbin policy\n", u.Email, joinGroup)
			return nil
		}
		g, err := a.Grants.AddToGroup(ctx, u.ID, joinGroup)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Added %s to group %s\n", u.Email, g.Name)
		return nil
	},
}

func init() {
	permsGrantCmd.Flags().StringVar(&grantEmail, "email", "", "Email of the user to grant to")
	permsGrantCmd.Flags().StringVar(&grantGroup, "group", "", "Group to grant to (created if missing)")
	permsGrantCmd.Flags().StringVar(&grantPerm, "perm", "", "Permission as app_label.codename (created if missing)")
	permsGrantCmd.Flags().StringVar(&grantBackend, "backend", config.BackendModel, "Where to record the grant: model or casbin")
	_ = permsGrantCmd.MarkFlagRequired("perm")

	permsJoinCmd.Flags().StringVar(&joinEmail, "email", "", "Email of the user")
	permsJoinCmd.Flags().StringVar(&joinGroup, "group", "", "Group to join (created if missing)")
	permsJoinCmd.Flags().StringVar(&joinBackend, "backend", config.BackendModel, "Where to record the membership: model or casbin")
	_ = permsJoinCmd.MarkFlagRequired("email")
	_ = permsJoinCmd.MarkFlagRequired("group")

	permsCmd.AddCommand(permsGrantCmd)
	permsCmd.AddCommand(permsJoinCmd)
}

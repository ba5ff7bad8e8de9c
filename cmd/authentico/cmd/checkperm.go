package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"authentico/internal/app"
	"authentico/internal/authz"
	"authentico/internal/platform/rbac"
	"authentico/internal/user/domain"
	"authentico/internal/user/service"
)

var (
	checkEmail      string
	checkPerm       string
	checkObjectType string
	checkObjectID   string
	checkAttrArgs   []string
	checkAll        bool
	checkAs         string
)

// viewUserPerm is required of the acting user (--as) to inspect another user's permissions.
const viewUserPerm = "users.view_user"

var checkPermCmd = &cobra.Command{
	Use:   "checkperm",
	Short: "Check whether a user holds a permission",
	Long: `Resolves a permission for a user through the configured backends (AUTH_BACKENDS).
Pass --object-type and --object-id for an object-level check. With --all, prints
every permission the user holds instead. With --as, the acting user must be active
and hold users.view_user.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		if !checkAll && checkPerm == "" {
			return errors.New("--perm is required unless --all is set")
		}
		obj, err := objectFromFlags(checkObjectType, checkObjectID, checkAttrArgs)
		if err != nil {
			return err
		}

		ctx := cobraCmd.Context()
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if checkAs != "" {
			actor, err := lookupUser(ctx, a, checkAs)
			if err != nil {
				return err
			}
			ctx = rbac.WithUserID(ctx, actor.ID)
			if _, err := rbac.RequirePerm(ctx, a.Users, a.Resolver, viewUserPerm, nil); err != nil {
				return err
			}
		}

		u, err := lookupUser(ctx, a, checkEmail)
		if err != nil {
			return err
		}

		if checkAll {
			perms, err := a.Resolver.GetAllPermissions(ctx, u, obj)
			if err != nil {
				return fmt.Errorf("failed to resolve permissions: %w", err)
			}
			if len(perms) == 0 {
				pterm.Info.Printf("%s holds no permissions\n", u.Email)
				return nil
			}
			table := pterm.TableData{{"PERMISSION"}}
			for _, p := range perms.Sorted() {
				table = append(table, []string{p})
			}
			_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
			return nil
		}

		ok, err := a.Resolver.HasPerm(ctx, u, checkPerm, obj)
		if err != nil {
			return fmt.Errorf("failed to resolve permission: %w", err)
		}
		if ok {
			pterm.Success.Printf("%s has %s\n", u.Email, checkPerm)
			return nil
		}
		pterm.Warning.Printf("%s does not have %s\n", u.Email, checkPerm)
		return errors.New("permission denied")
	},
}

// objectFromFlags builds the object for an object-level check. Type and ID must be set together;
// attributes require an object.
func objectFromFlags(objType, objID string, attrArgs []string) (*authz.Object, error) {
	if objType == "" && objID == "" {
		if len(attrArgs) > 0 {
			return nil, errors.New("--attr requires --object-type and --object-id")
		}
		return nil, nil
	}
	if objType == "" || objID == "" {
		return nil, errors.New("--object-type and --object-id must be set together")
	}
	kv, err := parseFilterArgs(attrArgs)
	if err != nil {
		return nil, err
	}
	obj := &authz.Object{Type: objType, ID: objID}
	if len(kv) > 0 {
		obj.Attributes = make(map[string]any, len(kv))
		for k, v := range kv {
			obj.Attributes[k] = v
		}
	}
	return obj, nil
}

func lookupUser(ctx context.Context, a *app.App, email string) (*domain.User, error) {
	u, err := a.Manager.GetByEmail(ctx, email)
	if errors.Is(err, service.ErrUserNotFound) {
		return nil, fmt.Errorf("no user with email %q", email)
	}
	return u, err
}

func init() {
	checkPermCmd.Flags().StringVar(&checkEmail, "email", "", "Email of the user to check")
	checkPermCmd.Flags().StringVar(&checkPerm, "perm", "", "Permission as app_label.codename")
	checkPermCmd.Flags().StringVar(&checkObjectType, "object-type", "", "Object type for an object-level check")
	checkPermCmd.Flags().StringVar(&checkObjectID, "object-id", "", "Object ID for an object-level check")
	checkPermCmd.Flags().StringArrayVar(&checkAttrArgs, "attr", nil, "Object attribute as key=value (e.g. owner_id=<user id>)")
	checkPermCmd.Flags().BoolVar(&checkAll, "all", false, "List every permission the user holds")
	checkPermCmd.Flags().StringVar(&checkAs, "as", "", "Email of the acting user to authorize")
	_ = checkPermCmd.MarkFlagRequired("email")
}

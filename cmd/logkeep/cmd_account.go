package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/logkeep/internal/plugin"
)

func newRolesCmd(a *app) *cobra.Command {
	var pathPrefix string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List IAM roles that can be granted access to log groups",
		Args:  cobra.NoArgs,
		RunE: a.withOpen(func(cmd *cobra.Command, _ []string) error {
			lister, ok := a.backend.(plugin.RoleLister)
			if !ok {
				return fmt.Errorf("roles: %s backend: %w", a.backend.Name(), errUnsupported)
			}

			roles, err := lister.ListRoles(cmd.Context(), pathPrefix)
			if err != nil {
				return err
			}
			if len(roles) == 0 {
				a.info("no roles found")
				return nil
			}
			return a.roleTable(roles)
		}),
	}

	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "Only list roles under this path (e.g., /service-role/)")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the backend, region and account in use",
		Args:  cobra.NoArgs,
		RunE: a.withOpen(func(cmd *cobra.Command, _ []string) error {
			account := "unknown"
			if r, ok := a.backend.(plugin.AccountResolver); ok {
				account = r.AccountID(cmd.Context())
			}
			region := "-"
			if r, ok := a.backend.(interface{ Region() string }); ok && r.Region() != "" {
				region = r.Region()
			}

			return a.table([][]string{
				{"Backend", "Region", "Account"},
				{a.backend.Name(), region, account},
			})
		}),
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quelio/engine/auth"
	"github.com/quelio/engine/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "config",
		Short:             "Configuration helpers",
		PersistentPreRunE: skipConfig,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [PATH]",
		Short: "Write an annotated configuration file (default quelio.json)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "quelio.json"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cmd
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "admin",
		Short:             "Admin helpers",
		PersistentPreRunE: skipConfig,
	}

	var password string
	hash := &cobra.Command{
		Use:   "hash",
		Short: "Print a bcrypt hash for admin_password_hash (password read from stdin unless --password)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			hashed, err := auth.HashPassword(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
	hash.Flags().StringVar(&password, "password", "", "Admin password")
	cmd.AddCommand(hash)
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quelio/engine/credentials"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "credentials",
		Short:             "Manage portal passwords in the OS keyring",
		PersistentPreRunE: skipConfig,
	}

	var (
		user     string
		password string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the portal password for a user (read from stdin unless --password)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			if err := credentials.SetPassword(user, secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password stored for %s\n", user)
			return nil
		},
	}
	set.Flags().StringVar(&user, "user", "", "Portal username")
	set.Flags().StringVar(&password, "password", "", "Portal password")
	_ = set.MarkFlagRequired("user")

	var deleteUser string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored portal password for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.DeletePassword(deleteUser); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password removed for %s\n", deleteUser)
			return nil
		},
	}
	del.Flags().StringVar(&deleteUser, "user", "", "Portal username")
	_ = del.MarkFlagRequired("user")

	cmd.AddCommand(set, del)
	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// profileView is the listed form of a profile. The password is reported
// only as present or absent.
type profileView struct {
	Alias       string `json:"alias"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
}

func viewProfile(p types.Profile) profileView {
	return profileView{
		Alias:       p.Alias,
		Host:        p.Host,
		Port:        p.Port,
		Username:    p.Username,
		HasPassword: p.Password != "",
	}
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage SSH connection profiles",
	}
	cmd.AddCommand(newProfileSetCmd(a))
	cmd.AddCommand(newProfileListCmd(a))
	cmd.AddCommand(newProfileGetCmd(a))
	cmd.AddCommand(newProfileDeleteCmd(a))
	return cmd
}

func newProfileSetCmd(a *app) *cobra.Command {
	var (
		p          types.Profile
		renameFrom string
	)
	cmd := &cobra.Command{
		Use:   "set <alias>",
		Short: "Create or edit a connection profile",
		Long: `Set creates the profile when the alias is new and edits it otherwise.
Flags that are not given keep their current value. --rename-from edits the
named profile and moves its command associations to the new alias.

Example:
  cmdrelay profile set Primary --host 192.168.0.12 --user alekos --password secret
  cmdrelay profile set Office --rename-from Backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()
			profiles := backend.Profiles()

			existingAlias := renameFrom
			if existingAlias == "" {
				existingAlias = args[0]
			}
			current, err := profiles.Get(existingAlias)
			switch {
			case errors.Is(err, types.ErrNotFound) && renameFrom == "":
				current = &types.Profile{Port: types.DefaultPort}
				existingAlias = ""
			case err != nil:
				return storeError(err)
			}

			next := *current
			next.Alias = args[0]
			flags := cmd.Flags()
			if flags.Changed("host") {
				next.Host = p.Host
			}
			if flags.Changed("port") {
				next.Port = p.Port
			}
			if flags.Changed("user") {
				next.Username = p.Username
			}
			if flags.Changed("password") {
				next.Password = p.Password
			}

			if err := profiles.Upsert(next, existingAlias); err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), viewProfile(next))
			}
			verb := "Created"
			if existingAlias != "" {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s profile %q (%s)\n", okFmt(verb), next.Alias, next.Address())
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Host, "host", "", "host name or address")
	cmd.Flags().IntVar(&p.Port, "port", types.DefaultPort, "SSH port")
	cmd.Flags().StringVar(&p.Username, "user", "", "login user")
	cmd.Flags().StringVar(&p.Password, "password", "", "login password (stored in plaintext)")
	cmd.Flags().StringVar(&renameFrom, "rename-from", "", "existing alias to rename")
	return cmd
}

func newProfileListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connection profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			profiles, err := backend.Profiles().List()
			if err != nil {
				return storeError(err)
			}
			views := make([]profileView, len(profiles))
			for i, p := range profiles {
				views[i] = viewProfile(p)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No profiles found.")
				return nil
			}
			rows := make([][]string, len(views))
			for i, v := range views {
				rows[i] = []string{v.Alias, v.Host, strconv.Itoa(v.Port), v.Username, yesNo(v.HasPassword)}
			}
			printTable(out, []string{"ALIAS", "HOST", "PORT", "USER", "PASSWORD"}, rows)
			return nil
		},
	}
}

func newProfileGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <alias>",
		Short: "Show one connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			p, err := backend.Profiles().Get(args[0])
			if err != nil {
				return storeError(err)
			}
			v := viewProfile(*p)
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), v)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Alias:    %s\n", v.Alias)
			fmt.Fprintf(out, "Address:  %s\n", p.Address())
			fmt.Fprintf(out, "User:     %s\n", v.Username)
			fmt.Fprintf(out, "Password: %s\n", yesNo(v.HasPassword))
			return nil
		},
	}
}

func newProfileDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <alias>",
		Short: "Delete a connection profile",
		Long: `Delete removes the profile. Commands that target the alias keep the
association and report the target as not configured until a profile with
that alias exists again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := backend.Profiles().Delete(args[0]); err != nil {
				return storeError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s profile %q\n", okFmt("Deleted"), args[0])
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/rfp-inbound/internal/credential"
)

// mailboxUser returns the username from args or configuration.
func mailboxUser(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.IMAP.Username == "" {
		return "", errors.New("no username given and imap.username / GMAIL_USER is not set")
	}
	return cfg.IMAP.Username, nil
}

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Store the mailbox app password in the system keyring",
	}

	set := &cobra.Command{
		Use:   "set [username]",
		Short: "Prompt for and store the mailbox password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := mailboxUser(args)
			if err != nil {
				return err
			}

			var secret string
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("App password for " + user).
						Description("Stored in the system keyring as " + credential.Key(user)).
						EchoMode(huh.EchoModePassword).
						Value(&secret).
						Validate(func(s string) error {
							if s == "" {
								return errors.New("password is required")
							}
							return nil
						}),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			ring, err := credential.OpenSystem()
			if err != nil {
				return err
			}
			if err := ring.Set(credential.Key(user), secret); err != nil {
				return err
			}
			fmt.Printf("Password for %s stored.\n", user)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete [username]",
		Short: "Remove the stored mailbox password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := mailboxUser(args)
			if err != nil {
				return err
			}
			ring, err := credential.OpenSystem()
			if err != nil {
				return err
			}
			if err := ring.Delete(credential.Key(user)); err != nil {
				return err
			}
			fmt.Printf("Password for %s removed.\n", user)
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

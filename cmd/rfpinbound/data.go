package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/rfp-inbound/internal/correlate"
	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/store"
	"github.com/nhle/rfp-inbound/internal/ui/syncview"
)

// openStore opens only the database, for commands that never touch the
// mailbox.
func openStore() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.DB.Path)
}

func newProposalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proposals [request id]",
		Short: "List the proposals admitted for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			proposals, err := s.ListProposals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(syncview.RenderProposals(args[0], proposals))
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Print(syncview.RenderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newVendorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendor",
		Short: "Manage vendors",
	}

	var name, email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a vendor address",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" {
				return errors.New("--name and --email are required")
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.CreateVendor(cmd.Context(), model.Vendor{Name: name, Email: email})
			if err != nil {
				return err
			}
			fmt.Printf("Vendor %s (%s) registered with id %s\n", v.Name, v.Email, v.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "vendor name")
	add.Flags().StringVar(&email, "email", "", "vendor email address, matched exactly")

	cmd.AddCommand(add)
	return cmd
}

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage requests for proposal",
	}

	var title, description, id string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a request and print the subject line to send it with",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return errors.New("--title is required")
			}
			if id != "" && !correlate.ValidID(id) {
				return fmt.Errorf("request id %q must be alphanumeric", id)
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.CreateRequest(cmd.Context(), model.Request{
				ID:          id,
				Title:       title,
				Description: description,
				Status:      model.RequestStatusSent,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Request %s created.\nSubject: %s\n", r.ID, correlate.Subject(r.Title, r.ID))
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "request title")
	add.Flags().StringVar(&description, "description", "", "request description")
	add.Flags().StringVar(&id, "id", "", "request id (alphanumeric, generated when empty)")

	cmd.AddCommand(add)
	return cmd
}

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"echomind/internal/domain"
)

func init() {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Manage stored conversations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return errors.WithMessage(err, "could not start echomind")
			}
			defer a.Close()
			convs, err := a.svc.ListConversations(cmd.Context())
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tTITLE")
			for _, c := range convs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.Title)
			}
			return w.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.WithMessage(err, "invalid conversation id")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return errors.WithMessage(err, "could not start echomind")
			}
			defer a.Close()
			if err := a.svc.DeleteConversation(cmd.Context(), id); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename [id] [title]",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.WithMessage(err, "invalid conversation id")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return errors.WithMessage(err, "could not start echomind")
			}
			defer a.Close()
			if err := a.svc.RenameConversation(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				return errors.New(domain.UserMessage(err))
			}
			return nil
		},
	}

	cmd.AddCommand(list, del, rename)
	rootCmd.AddCommand(cmd)
}

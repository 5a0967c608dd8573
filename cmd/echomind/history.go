package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"echomind/internal/domain"
	"echomind/internal/history"
)

const dateLayout = "2006-01-02"

func init() {
	var (
		query    string
		category string
		pinned   bool
		from     string
		to       string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Search stored messages across conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := history.Options{Query: query, OnlyPinned: pinned}
			if category != "" {
				id, err := uuid.Parse(category)
				if err != nil {
					return errors.WithMessage(err, "invalid category id")
				}
				opts.CategoryID = &id
			}
			if from != "" {
				t, err := time.ParseInLocation(dateLayout, from, time.Local)
				if err != nil {
					return errors.WithMessage(err, "invalid --from date")
				}
				opts.From = t
			}
			if to != "" {
				t, err := time.ParseInLocation(dateLayout, to, time.Local)
				if err != nil {
					return errors.WithMessage(err, "invalid --to date")
				}
				// The whole last day is included.
				opts.To = t.Add(24*time.Hour - time.Nanosecond)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return errors.WithMessage(err, "could not start echomind")
			}
			defer a.Close()

			entries, err := history.Load(cmd.Context(), a.svc)
			if err != nil {
				return errors.New(domain.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			for _, e := range history.Filter(entries, opts) {
				pin := ""
				if e.Message.IsPinned {
					pin = " *"
				}
				fmt.Fprintf(out, "[%s] %s / %s%s\n%s\n\n",
					e.Message.CreatedAt.Format("2006-01-02 15:04"), e.Conversation.Title, e.Message.Role, pin, e.Message.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Only messages containing this text")
	cmd.Flags().StringVar(&category, "category", "", "Only conversations in this category id")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "Only pinned messages")
	cmd.Flags().StringVar(&from, "from", "", "Only messages on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Only messages on or before this date (YYYY-MM-DD)")
	rootCmd.AddCommand(cmd)
}

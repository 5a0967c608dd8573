package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"echomind/internal/domain"
)

func init() {
	var conversation string
	var showPrompt bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return errors.WithMessage(err, "could not start echomind")
			}
			defer a.Close()

			var convID uuid.UUID
			if conversation != "" {
				convID, err = uuid.Parse(conversation)
				if err != nil {
					return errors.WithMessage(err, "invalid conversation id")
				}
			} else {
				conv, err := a.svc.NewConversation(ctx)
				if err != nil {
					return errors.New(domain.UserMessage(err))
				}
				convID = conv.ID
			}

			reply, err := a.svc.Submit(ctx, convID, strings.Join(args, " "))
			out := cmd.OutOrStdout()
			if reply != nil && showPrompt {
				fmt.Fprintf(out, "--- prompt ---\n%s\n--------------\n", reply.Prompt)
			}
			if reply.Answered() {
				fmt.Fprintln(out, reply.AssistantMessage.Content)
			}
			if err != nil {
				if reply != nil && reply.Unsaved {
					// One immediate retry; the answer is already printed.
					if retryErr := a.svc.RetrySave(ctx, reply); retryErr == nil {
						return nil
					}
				}
				return errors.New(domain.UserMessage(err))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "conversation %s\n", convID)
			return nil
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Continue the conversation with this id instead of starting a new one")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the prompt sent to the model")
	rootCmd.AddCommand(cmd)
}

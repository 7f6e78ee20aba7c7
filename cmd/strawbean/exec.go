package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/strawbean/plugin/reminder"
	"github.com/hrygo/strawbean/server"
	"github.com/hrygo/strawbean/server/auth"
	"github.com/hrygo/strawbean/server/service/command"
)

func newExecCmd() *cobra.Command {
	var owner, output string
	cmd := &cobra.Command{
		Use:   "exec [flags] <message>",
		Short: "Run the directives of one message against the store and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}
			p, err := loadProfile()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer s.Close()

			executor := command.NewExecutor(reminder.NewService(s, p.DefaultReminderName), command.ConfigFromProfile(p))
			replies := executor.Execute(cmd.Context(), owner, strings.Join(args, " "))
			return renderReplies(cmd.OutOrStdout(), replies, output)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner the directives run as")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

// renderReplies writes replies in the requested format.
func renderReplies(w io.Writer, replies []command.Reply, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(replies)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(replies); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		for _, r := range replies {
			if r.Failed() {
				fmt.Fprintf(w, "error: %s\n", r.Error)
				continue
			}
			if r.Title != "" {
				fmt.Fprintln(w, r.Title)
			}
			if r.Body != "" {
				fmt.Fprintln(w, r.Body)
			}
		}
		return nil
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <owner>",
		Short: "Issue an API access token for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			if err := server.ResolveSecret(p); err != nil {
				return err
			}
			token, err := auth.NewAuthenticator(p.Secret).GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

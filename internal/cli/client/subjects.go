package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

type subjectInfo struct {
	Subject string   `json:"subject"`
	Agent   string   `json:"agent"`
	Label   string   `json:"label"`
	Topics  []string `json:"topics"`
}

// AgentReply is one subject agent answer.
type AgentReply struct {
	Subject  string `json:"subject"`
	Agent    string `json:"agent,omitempty"`
	Label    string `json:"label,omitempty"`
	Response string `json:"response"`
	Outcome  string `json:"outcome"`
}

// SubjectsCmd groups the subject agent commands.
func SubjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Talk to the subject tutors",
	}

	cmd.AddCommand(subjectsListCmd())
	cmd.AddCommand(subjectsAskCmd())
	cmd.AddCommand(recommendCmd())

	return cmd
}

func subjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available subject agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/subjects")
			if err != nil {
				return fmt.Errorf("failed to list subjects: %w", err)
			}
			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeRaw(out, resp.Data)
			}

			var subjects []*subjectInfo
			if err := resp.Decode(&subjects); err != nil {
				return err
			}
			for _, s := range subjects {
				fmt.Fprintf(out, "  %-18s %s %s\n", s.Subject, s.Label, s.Agent)
			}
			return nil
		},
	}
}

func subjectsAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <subject> <question>",
		Short: "Ask one subject agent directly",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSubjectAsk(cmd.Context(), api, cmd.OutOrStdout(), outputJSON(cmd), args[0], strings.Join(args[1:], " "))
		},
	}
}

func runSubjectAsk(ctx context.Context, api *APIClient, out io.Writer, asJSON bool, subject, question string) error {
	resp, err := api.Post(ctx, "/subjects/"+url.PathEscape(subject)+"/ask", map[string]string{"question": question})
	if err != nil {
		return fmt.Errorf("failed to ask %s agent: %w", subject, err)
	}
	if asJSON {
		return writeRaw(out, resp.Data)
	}

	var reply AgentReply
	if err := resp.Decode(&reply); err != nil {
		return err
	}
	if reply.Label != "" {
		fmt.Fprintf(out, "%s ", reply.Label)
	}
	fmt.Fprintln(out, reply.Response)
	return nil
}

func recommendCmd() *cobra.Command {
	var subjects []string

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Get study recommendations for a set of subjects",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/recommendations", map[string]any{"subjects": subjects})
			if err != nil {
				return fmt.Errorf("failed to get recommendations: %w", err)
			}
			return writeRaw(cmd.OutOrStdout(), resp.Data)
		},
	}

	cmd.Flags().StringSliceVar(&subjects, "subject", nil, "Subject to include (repeatable)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

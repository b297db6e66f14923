package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// ChatReply is the API reply to one chat message.
type ChatReply struct {
	Response          string      `json:"response"`
	Status            string      `json:"status"`
	ConversationID    string      `json:"conversation_id,omitempty"`
	ConversationTitle string      `json:"conversation_title,omitempty"`
	Subject           string      `json:"subject,omitempty"`
	Agent             string      `json:"agent,omitempty"`
	Label             string      `json:"label,omitempty"`
	Confidence        *float64    `json:"confidence,omitempty"`
	Citations         []*Citation `json:"citations,omitempty"`
}

type conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subject   string `json:"subject"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type chatMessage struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type conversationDetail struct {
	conversation
	Messages []*chatMessage `json:"messages"`
}

type chatOptions struct {
	ConversationID string
	DocumentID     string
	Subject        string
}

// ChatCmd sends one message, or starts an interactive session when no message is given.
func ChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the study companion",
		Long: `Send a message to the study companion. The subject is detected automatically
unless --subject is given; --document answers from one uploaded document instead.
Without a message, reads one message per line from stdin until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return runChatSession(cmd.Context(), api, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
			}
			_, err = sendChat(cmd.Context(), api, cmd.OutOrStdout(), outputJSON(cmd), strings.Join(args, " "), opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.ConversationID, "conversation", "c", "", "Continue an existing conversation")
	cmd.Flags().StringVarP(&opts.DocumentID, "document", "d", "", "Answer from one uploaded document")
	cmd.Flags().StringVarP(&opts.Subject, "subject", "s", "", "Route to this subject agent")

	return cmd
}

func sendChat(ctx context.Context, api *APIClient, out io.Writer, asJSON bool, message string, opts chatOptions) (*ChatReply, error) {
	resp, err := api.Post(ctx, "/chat", map[string]string{
		"message":         message,
		"conversation_id": opts.ConversationID,
		"document_id":     opts.DocumentID,
		"subject":         opts.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var reply ChatReply
	if err := resp.Decode(&reply); err != nil {
		return nil, err
	}
	if asJSON {
		return &reply, writeRaw(out, resp.Data)
	}

	if reply.Label != "" {
		fmt.Fprintf(out, "%s ", reply.Label)
	}
	fmt.Fprintln(out, reply.Response)
	if reply.Confidence != nil && len(reply.Citations) > 0 {
		fmt.Fprintf(out, "(confidence %s, %d sources)\n", formatConfidence(*reply.Confidence), len(reply.Citations))
	}
	return &reply, nil
}

// runChatSession keeps the conversation returned by the first reply for every later line.
func runChatSession(ctx context.Context, api *APIClient, in io.Reader, out io.Writer, opts chatOptions) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		reply, err := sendChat(ctx, api, out, false, line, opts)
		if err != nil {
			return err
		}
		if reply.ConversationID != "" {
			opts.ConversationID = reply.ConversationID
		}
		fmt.Fprint(out, "\n> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

// ConversationsCmd groups the conversation history commands.
func ConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage chat conversations",
	}

	cmd.AddCommand(conversationsListCmd())
	cmd.AddCommand(conversationsShowCmd())
	cmd.AddCommand(conversationsDeleteCmd())

	return cmd
}

func conversationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your conversations, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/conversations")
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}
			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeRaw(out, resp.Data)
			}

			var items []*conversation
			if err := resp.Decode(&items); err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No conversations found")
				return nil
			}
			for _, c := range items {
				fmt.Fprintf(out, "  %s: %s [%s, updated %s]\n", c.ID, c.Title, c.Subject, c.UpdatedAt)
			}
			return nil
		},
	}
}

func conversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/conversations/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get conversation: %w", err)
			}
			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeRaw(out, resp.Data)
			}

			var detail conversationDetail
			if err := resp.Decode(&detail); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s [%s]\n\n", detail.Title, detail.Subject)
			for _, m := range detail.Messages {
				fmt.Fprintf(out, "%s: %s\n", m.Type, m.Content)
			}
			return nil
		},
	}
}

func conversationsDeleteCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one conversation, or all of them with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a conversation id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("requires a conversation id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if all {
				resp, err := api.Delete(cmd.Context(), "/conversations")
				if err != nil {
					return fmt.Errorf("failed to delete conversations: %w", err)
				}
				var result struct {
					Deleted int64 `json:"deleted"`
				}
				if err := resp.Decode(&result); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d conversations\n", result.Deleted)
				return nil
			}

			if _, err := api.Delete(cmd.Context(), "/conversations/"+url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("failed to delete conversation: %w", err)
			}
			fmt.Fprintf(out, "Conversation %s deleted\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every conversation")

	return cmd
}

package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Citation references a chunk an answer was grounded on.
type Citation struct {
	ChunkID       string `json:"chunk_id"`
	DocumentID    string `json:"document_id"`
	SequenceIndex int    `json:"sequence_index"`
	Rank          int    `json:"rank"`
	Excerpt       string `json:"excerpt,omitempty"`
}

// AskResult is the reply to a question about the user's documents.
type AskResult struct {
	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Outcome    string      `json:"outcome"`
	Label      string      `json:"label,omitempty"`
	QueryID    string      `json:"query_id,omitempty"`
	Citations  []*Citation `json:"citations"`
}

type queryRecord struct {
	ID         string      `json:"id"`
	DocumentID string      `json:"document_id,omitempty"`
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Outcome    string      `json:"outcome"`
	Citations  []*Citation `json:"citations"`
	CreatedAt  string      `json:"created_at"`
}

type queryPage struct {
	Items   []*queryRecord `json:"items"`
	Cursor  string         `json:"cursor,omitempty"`
	HasMore bool           `json:"has_more"`
}

// AskCmd asks a question grounded on the user's documents.
func AskCmd() *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your documents",
		Long:  "Retrieve the most relevant chunks of your processed documents and answer from them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), api, cmd.OutOrStdout(), outputJSON(cmd), strings.Join(args, " "), documentID)
		},
	}

	cmd.Flags().StringVarP(&documentID, "document", "d", "", "Restrict the question to one document")

	return cmd
}

func runAsk(ctx context.Context, api *APIClient, out io.Writer, asJSON bool, question, documentID string) error {
	resp, err := api.Post(ctx, "/ask", map[string]string{
		"question":    question,
		"document_id": documentID,
	})
	if err != nil {
		return fmt.Errorf("failed to ask: %w", err)
	}
	if asJSON {
		return writeRaw(out, resp.Data)
	}

	var result AskResult
	if err := resp.Decode(&result); err != nil {
		return err
	}
	if result.Label != "" {
		fmt.Fprintf(out, "%s ", result.Label)
	}
	fmt.Fprintln(out, result.Answer)
	if len(result.Citations) > 0 {
		fmt.Fprintf(out, "\nConfidence: %s\n", formatConfidence(result.Confidence))
		fmt.Fprintln(out, "Sources:")
		for _, c := range result.Citations {
			fmt.Fprintf(out, "  [%d] document %s, chunk %d: %s\n", c.Rank, c.DocumentID, c.SequenceIndex, truncate(c.Excerpt, 60))
		}
	}
	return nil
}

// HistoryCmd lists previously asked questions.
func HistoryCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your previous questions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/queries"+pageQuery(limit, cursor))
			if err != nil {
				return fmt.Errorf("failed to list queries: %w", err)
			}
			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeRaw(out, resp.Data)
			}

			var page queryPage
			if err := resp.Decode(&page); err != nil {
				return err
			}
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No questions asked yet")
				return nil
			}
			for _, q := range page.Items {
				fmt.Fprintf(out, "%s  %s [%s, %s]\n", q.CreatedAt, truncate(q.Question, 60), q.Outcome, formatConfidence(q.Confidence))
			}
			if page.HasMore && page.Cursor != "" {
				fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// Document is a document as returned by the API.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Kind        string `json:"kind"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	IsProcessed bool   `json:"is_processed"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type documentPage struct {
	Items   []*Document `json:"items"`
	Cursor  string      `json:"cursor,omitempty"`
	HasMore bool        `json:"has_more"`
}

// Chunk is one stored fragment of a document.
type Chunk struct {
	ID            string `json:"id"`
	SequenceIndex int    `json:"sequence_index"`
	Content       string `json:"content"`
	PageNumber    *int   `json:"page_number,omitempty"`
	ChunkSize     int    `json:"chunk_size"`
	HasEmbedding  bool   `json:"has_embedding"`
}

// UploadCmd uploads a study document.
func UploadCmd() *cobra.Command {
	var title, description, subject string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a study document",
		Long:  "Upload a txt, pdf, doc or docx file. Text files are chunked and embedded for questions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runUpload(cmd.Context(), api, cmd.OutOrStdout(), outputJSON(cmd), args[0], map[string]string{
				"title":       title,
				"description": description,
				"subject":     subject,
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Document title (defaults to the file name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Document description")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject the document belongs to")

	return cmd
}

func runUpload(ctx context.Context, api *APIClient, out io.Writer, asJSON bool, filePath string, fields map[string]string) error {
	resp, err := api.UploadFile(ctx, "/documents", filePath, fields)
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}
	if asJSON {
		return writeRaw(out, resp.Data)
	}

	var doc Document
	if err := resp.Decode(&doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "Uploaded %s (%s)\n", doc.Title, doc.ID)
	fmt.Fprintf(out, "Status: %s\n", doc.Status)
	if doc.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", doc.Error)
	}
	return nil
}

// DocumentsCmd groups the document management commands.
func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage uploaded documents",
	}

	cmd.AddCommand(documentsListCmd())
	cmd.AddCommand(documentsGetCmd())
	cmd.AddCommand(documentsChunksCmd())
	cmd.AddCommand(documentsDeleteCmd())

	return cmd
}

func documentsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runDocumentsList(cmd.Context(), api, cmd.OutOrStdout(), outputJSON(cmd), limit, cursor)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runDocumentsList(ctx context.Context, api *APIClient, out io.Writer, asJSON bool, limit int, cursor string) error {
	resp, err := api.Get(ctx, "/documents"+pageQuery(limit, cursor))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if asJSON {
		return writeRaw(out, resp.Data)
	}

	var page documentPage
	if err := resp.Decode(&page); err != nil {
		return err
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No documents found")
		return nil
	}
	for _, doc := range page.Items {
		fmt.Fprintf(out, "  %s: %s [%s, %s]\n", doc.ID, doc.Title, doc.Kind, doc.Status)
	}
	if page.HasMore && page.Cursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
	}
	return nil
}

func documentsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Aliases: []string{"show"},
		Short:   "Show one document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runDocumentsGet(cmd.Context(), api, cmd.OutOrStdout(), outputJSON(cmd), args[0])
		},
	}
}

func runDocumentsGet(ctx context.Context, api *APIClient, out io.Writer, asJSON bool, id string) error {
	resp, err := api.Get(ctx, "/documents/"+url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if asJSON {
		return writeRaw(out, resp.Data)
	}

	var doc Document
	if err := resp.Decode(&doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "Title: %s\n", doc.Title)
	fmt.Fprintf(out, "File: %s (%s, %d bytes)\n", doc.Filename, doc.Kind, doc.SizeBytes)
	if doc.Subject != "" {
		fmt.Fprintf(out, "Subject: %s\n", doc.Subject)
	}
	if doc.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", doc.Description)
	}
	fmt.Fprintf(out, "Status: %s\n", doc.Status)
	if doc.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", doc.Error)
	}
	fmt.Fprintf(out, "Created: %s\n", doc.CreatedAt)
	return nil
}

func documentsChunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <id>",
		Short: "List the chunks extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/documents/"+url.PathEscape(args[0])+"/chunks")
			if err != nil {
				return fmt.Errorf("failed to list chunks: %w", err)
			}
			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeRaw(out, resp.Data)
			}

			var chunks []*Chunk
			if err := resp.Decode(&chunks); err != nil {
				return err
			}
			for _, c := range chunks {
				embedded := "embedded"
				if !c.HasEmbedding {
					embedded = "no embedding"
				}
				fmt.Fprintf(out, "#%d (%d chars, %s): %s\n", c.SequenceIndex, c.ChunkSize, embedded, truncate(c.Content, 80))
			}
			return nil
		},
	}
}

func documentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete(cmd.Context(), "/documents/"+url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %s deleted\n", args[0])
			return nil
		},
	}
}

func pageQuery(limit int, cursor string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

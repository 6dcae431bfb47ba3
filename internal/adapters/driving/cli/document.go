package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage stored documents",
	Long:  `Add, list, view, or delete the documents the index is built from.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store a new document",
	Long: `Stores a document in pending status. Content is read from --content,
from --file, or from standard input when neither is given.

Use --index to chunk and embed the document straight away.`,
	Args: cobra.NoArgs,
	RunE: runDocumentAdd,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Long:  `Removes the document, its stored embeddings and its index entries.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var (
	addTitle     string
	addContent   string
	addFile      string
	addNamespace string
	addImages    []string
	addIndex     bool

	listStatus string
)

func init() {
	documentAddCmd.Flags().StringVarP(&addTitle, "title", "t", "", "document title (defaults to the file name)")
	documentAddCmd.Flags().StringVarP(&addContent, "content", "c", "", "document text")
	documentAddCmd.Flags().StringVarP(&addFile, "file", "f", "", "read document text from a file")
	documentAddCmd.Flags().StringVar(&addNamespace, "namespace", "", "tenant namespace tag")
	documentAddCmd.Flags().StringSliceVar(&addImages, "image", nil, "attach an image URL (repeatable)")
	documentAddCmd.Flags().BoolVar(&addIndex, "index", false, "index the document after storing it")
	documentAddCmd.MarkFlagsMutuallyExclusive("content", "file")

	documentListCmd.Flags().StringVarP(&listStatus, "status", "s", "",
		"filter by status (pending, processing, indexed, failed)")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	if addIndex && indexingService == nil {
		return errors.New("indexing service not configured")
	}

	content, title, err := readDocumentInput(cmd)
	if err != nil {
		return err
	}

	attachments := make([]domain.Attachment, 0, len(addImages))
	for _, u := range addImages {
		attachments = append(attachments, domain.ImageAttachment{URL: u})
	}

	ctx := cmd.Context()
	doc, err := documentService.Add(ctx, driving.NewDocument{
		Title:       title,
		Content:     content,
		Namespace:   addNamespace,
		Attachments: attachments,
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	cmd.Printf("Added document %d\n", doc.ID)

	if !addIndex {
		return nil
	}
	if err := indexingService.IndexDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
	}
	persistSnapshot(cmd)
	cmd.Printf("Indexed document %d\n", doc.ID)
	return nil
}

func readDocumentInput(cmd *cobra.Command) (content, title string, err error) {
	title = addTitle
	switch {
	case addContent != "":
		content = addContent
	case addFile != "":
		data, err := os.ReadFile(addFile)
		if err != nil {
			return "", "", fmt.Errorf("failed to read %s: %w", addFile, err)
		}
		content = string(data)
		if title == "" {
			title = filepath.Base(addFile)
		}
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read standard input: %w", err)
		}
		content = string(data)
	}
	return content, title, nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context(), domain.DocumentStatus(listStatus))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Println(headingStyle.Render("Documents:"))
	cmd.Println()
	for i := range docs {
		d := &docs[i]
		cmd.Printf("  %d  %s\n", d.ID, statusLabel(d.Status))
		if d.Title != "" {
			cmd.Printf("    Title: %s\n", d.Title)
		}
		if d.Namespace != nil {
			cmd.Printf("    Namespace: %s\n", *d.Namespace)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}

	doc, err := documentService.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %d\n\n", doc.ID)
	cmd.Printf("  Title:     %s\n", doc.Title)
	cmd.Printf("  Namespace: %s\n", doc.NamespaceValue())
	cmd.Printf("  Status:    %s\n", statusLabel(doc.Status))
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:     %s\n", doc.ErrorMessage)
	}
	cmd.Printf("  Created:   %s\n", doc.CreatedAt.Format(timeFormat))
	cmd.Printf("  Updated:   %s\n", doc.UpdatedAt.Format(timeFormat))

	if len(doc.Attachments) > 0 {
		cmd.Println("\n  Attachments:")
		for _, a := range doc.Attachments {
			cmd.Printf("    %s\n", describeAttachment(a))
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}

	content, err := documentService.GetContent(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	id, err := parseDocumentID(args[0])
	if err != nil {
		return err
	}

	if err := documentService.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	persistSnapshot(cmd)

	cmd.Printf("Deleted document %d\n", id)
	return nil
}

func statusLabel(s domain.DocumentStatus) string {
	switch s {
	case domain.StatusIndexed:
		return scoreStyle.Render(s.String())
	case domain.StatusFailed:
		return warnStyle.Render(s.String())
	default:
		return mutedStyle.Render(s.String())
	}
}

func describeAttachment(a domain.Attachment) string {
	switch v := a.(type) {
	case domain.ImageAttachment:
		return fmt.Sprintf("image: %s", v.URL)
	case domain.VideoAttachment:
		return fmt.Sprintf("video: %s", v.URL)
	case domain.AudioAttachment:
		return fmt.Sprintf("audio: %s", v.URL)
	case domain.DocumentAttachment:
		return fmt.Sprintf("document: %s (%s)", v.FileName, v.URL)
	default:
		return string(a.Type())
	}
}

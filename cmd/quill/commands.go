package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type answerResponse struct {
	Answer  string `json:"answer"`
	Sources []struct {
		Filename  string `json:"filename"`
		Extension string `json:"extension"`
	} `json:"sources"`
	Confidence     string `json:"confidence"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func printAnswer(resp answerResponse) {
	fmt.Fprintln(os.Stdout, resp.Answer)
	if len(resp.Sources) > 0 {
		var names []string
		for _, s := range resp.Sources {
			names = append(names, s.Filename)
		}
		printStatus("sources", "%s", strings.Join(names, ", "))
	}
	printStatus("confidence", "%s", colorize(confidenceColor(resp.Confidence), resp.Confidence))
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-off question about the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/query", map[string]string{"question": question})
		if err != nil {
			return err
		}

		var ans answerResponse
		if err := decodeJSON(resp, &ans); err != nil {
			return err
		}
		printAnswer(ans)
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation about the indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		conversationID := uuid.New().String()
		printStep("chat session started (empty line or 'exit' to quit)")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(os.Stderr, colorize(colorBold, "> "))
			if !scanner.Scan() {
				break
			}
			message := strings.TrimSpace(scanner.Text())
			if message == "" || message == "exit" {
				break
			}

			resp, err := client.post(cmd.Context(), "/v1/chat", map[string]string{
				"message":         message,
				"conversation_id": conversationID,
			})
			if err != nil {
				return err
			}

			var ans answerResponse
			if err := decodeJSON(resp, &ans); err != nil {
				printError("%v", err)
				continue
			}
			printAnswer(ans)
		}
		return scanner.Err()
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Upload documents into the index",
	Long: `Upload documents into the index.

Examples:
  quill ingest report.pdf
  quill ingest notes.md data.csv figures.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.uploadFiles(cmd.Context(), args)
		if err != nil {
			return err
		}

		var result struct {
			ChunksCreated int `json:"chunks_created"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("indexed %d file(s), %d chunks created", len(args), result.ChunksCreated)
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/stats")
		if err != nil {
			return err
		}

		var stats struct {
			TotalChunks int    `json:"total_chunks"`
			Status      string `json:"status"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("chunks", "%d", stats.TotalChunks)
		printStatus("status", "%s", stats.Status)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the quill server is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if !client.healthy(cmd.Context()) {
			return fmt.Errorf("server not reachable at %s, is quill serve running?", client.baseURL)
		}
		printSuccess("server is up at %s", client.baseURL)
		return nil
	},
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the whole index and all conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			fmt.Fprint(os.Stderr, "This deletes all indexed documents and conversations. Continue? [y/N] ")
			scanner := bufio.NewScanner(os.Stdin)
			if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
				printStep("aborted")
				return nil
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/v1/reset")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("index reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
}

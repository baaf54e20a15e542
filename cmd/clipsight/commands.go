package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/store"
)

// statusDoc mirrors the pollable status response.
type statusDoc struct {
	VideoID          string `json:"video_id"`
	ProcessingStatus string `json:"processing_status"`
	Interactions     []struct {
		InteractionID   string `json:"interaction_id"`
		UserName        string `json:"user_name"`
		UserQuery       string `json:"user_query"`
		QueryTimestamp  string `json:"query_timestamp"`
		Status          string `json:"status"`
		AIAnswer        string `json:"ai_answer"`
		AnswerTimestamp string `json:"answer_timestamp"`
	} `json:"interactions"`
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <video-id> <question...>",
	Short: "Ask a question about a processed video and wait for the answer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID := args[0]
		question := strings.Join(args[1:], " ")
		userName, _ := cmd.Flags().GetString("user")
		wait, _ := cmd.Flags().GetDuration("wait")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		resp, err := client.post(ctx, "/api/query/async", map[string]string{
			"video_id":   videoID,
			"user_query": question,
			"user_name":  userName,
		})
		if err != nil {
			return err
		}

		var submitted struct {
			Status        string `json:"status"`
			VideoID       string `json:"video_id"`
			InteractionID string `json:"interaction_id"`
		}
		if err := decodeJSON(resp, &submitted); err != nil {
			return err
		}

		printStep("Processing interaction %s...", submitted.InteractionID)

		answer, status, err := pollForAnswer(ctx, client, videoID, submitted.InteractionID, wait)
		if err != nil {
			return err
		}
		if status == store.StatusFailed {
			printError("The question could not be answered. Try again later.")
			return fmt.Errorf("interaction %s failed", submitted.InteractionID)
		}

		fmt.Println(answer)
		return nil
	},
}

// pollForAnswer polls the status endpoint until the interaction reaches
// a terminal state or the wait budget runs out.
func pollForAnswer(ctx context.Context, client *apiClient, videoID, interactionID string, wait time.Duration) (string, string, error) {
	deadline := time.Now().Add(wait)
	for {
		if time.Now().After(deadline) {
			return "", "", fmt.Errorf("no answer after %s; poll later with: clipsight status %s", wait, videoID)
		}

		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(2 * time.Second):
		}

		resp, err := client.get(ctx, "/api/query/status/"+videoID)
		if err != nil {
			return "", "", err
		}
		var doc statusDoc
		if err := decodeJSON(resp, &doc); err != nil {
			return "", "", err
		}

		for _, ix := range doc.Interactions {
			if ix.InteractionID != interactionID {
				continue
			}
			if ix.Status != store.StatusProcessing {
				return ix.AIAnswer, ix.Status, nil
			}
		}
	}
}

func init() {
	askCmd.Flags().String("user", "", "user name to record with the question")
	askCmd.Flags().Duration("wait", 3*time.Minute, "how long to wait for the answer")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status <video-id>",
	Short: "Show a video's processing status and interaction history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/query/status/"+args[0])
		if err != nil {
			return err
		}
		var doc statusDoc
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		fmt.Printf("%s %s (%s)\n", colorize(colorBold, "Video:"), doc.VideoID, doc.ProcessingStatus)
		if len(doc.Interactions) == 0 {
			fmt.Println("No interactions yet.")
			return nil
		}

		for _, ix := range doc.Interactions {
			query := ix.UserQuery
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Printf("\n%s  %s  [%s]\n", colorize(colorCyan, ix.InteractionID[:8]), ix.QueryTimestamp, ix.Status)
			fmt.Printf("  Q: %s\n", query)
			if ix.AIAnswer != "" {
				fmt.Printf("  A: %s\n", ix.AIAnswer)
			}
		}
		return nil
	},
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index <video-id>",
	Short: "Load a processed video's chunks into the vector index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/videos/"+args[0]+"/index", nil)
		if err != nil {
			return err
		}

		var result struct {
			VideoID string `json:"video_id"`
			Indexed int    `json:"indexed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Indexed %d segments for %s", result.Indexed, result.VideoID)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maiiam/maiiam/internal/config"
	"github.com/maiiam/maiiam/internal/research"
	"github.com/maiiam/maiiam/internal/state"
	"github.com/maiiam/maiiam/internal/voice"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the wellness guide",
	Long: `Send a message to the wellness guide.

Every second message also refreshes the emotional state estimate
from the message text.

Example:
  maiiam chat "I feel anxious about work"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/messages", map[string]string{"message": message})
		if err != nil {
			return err
		}

		var result struct {
			Reply string `json:"reply"`
			State struct {
				Dominant string  `json:"dominant"`
				Score    float64 `json:"score"`
			} `json:"state"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		if result.State.Dominant != "" && result.State.Score > 0 {
			printStatus("State", "%s (%.0f%%)", result.State.Dominant, result.State.Score)
		}
		return nil
	},
}

// --- journal ---

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Record and review journal entries",
}

var journalAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Record a journal entry (its text is analyzed for state)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitJournalEntry(cmd.Context(), strings.Join(args, " "))
	},
}

var journalRecordFile string

var journalRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Dictate a journal entry from a voice transcript stream",
	Long: `Dictate a journal entry from a voice transcript stream.

Reads utterances line by line from stdin (or from --file) until the stream
ends, assembles them into one transcript, and records it as a journal entry.

Example:
  dictate | maiiam journal record`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var input io.Reader = os.Stdin
		if journalRecordFile != "" {
			f, err := os.Open(journalRecordFile)
			if err != nil {
				return fmt.Errorf("opening transcript file: %w", err)
			}
			defer f.Close()
			input = f
		}

		capture := voice.NewCapture(voice.NewReaderSource(input))
		printStep("Listening; end of input finishes the capture")
		if err := capture.Start(cmd.Context()); err != nil {
			return err
		}
		capture.Wait()

		text := strings.TrimSpace(capture.Transcript())
		if text == "" {
			printWarning("Nothing captured, no entry recorded")
			return nil
		}
		return submitJournalEntry(cmd.Context(), text)
	},
}

func submitJournalEntry(ctx context.Context, text string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.post(ctx, "/journal", map[string]string{"text": text})
	if err != nil {
		return err
	}

	var entry struct {
		ID         string `json:"id"`
		Suggestion string `json:"suggestion"`
	}
	if err := decodeJSON(resp, &entry); err != nil {
		return err
	}

	printSuccess("Journal entry %s recorded", entry.ID)
	if entry.Suggestion != "" {
		printStatus("Suggestion", "%s", entry.Suggestion)
	}
	return nil
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/journal")
		if err != nil {
			return err
		}

		var entries []struct {
			ID         string `json:"id"`
			Text       string `json:"text"`
			CreatedAt  string `json:"created_at"`
			Suggestion string `json:"suggestion"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No journal entries yet.")
			return nil
		}

		for _, e := range entries {
			text := e.Text
			if len(text) > 80 {
				text = text[:80] + "..."
			}
			fmt.Printf("%s  %s  %s\n", colorize(colorCyan, e.ID), e.CreatedAt, text)
			if e.Suggestion != "" {
				fmt.Printf("          %s\n", colorize(colorYellow, e.Suggestion))
			}
		}
		return nil
	},
}

func init() {
	journalRecordCmd.Flags().StringVar(&journalRecordFile, "file", "", "read the transcript from a file instead of stdin")
	journalCmd.AddCommand(journalAddCmd)
	journalCmd.AddCommand(journalRecordCmd)
	journalCmd.AddCommand(journalListCmd)
}

// --- research ---

var researchCmd = &cobra.Command{
	Use:   "research [topic]",
	Short: "Research a wellness topic",
	Long: `Research a wellness topic and show collected results.

With no topic, lists suggested topics and any results already collected.

Example:
  maiiam research "Sleep Hygiene"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			return showResearch(cmd.Context(), client)
		}

		topic := strings.Join(args, " ")
		resp, err := client.post(cmd.Context(), "/research", map[string]string{"topic": topic})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Research started for %q", result["topic"])
		printStep("Results will be available shortly; run 'maiiam research' to view them.")
		return nil
	},
}

func showResearch(ctx context.Context, client *apiClient) error {
	resp, err := client.get(ctx, "/research")
	if err != nil {
		return err
	}

	var results map[string]string
	if err := decodeJSON(resp, &results); err != nil {
		return err
	}

	fmt.Println(colorize(colorBold, "Suggested topics:"))
	for _, topic := range research.Topics {
		fmt.Printf("  - %s\n", topic)
	}

	if len(results) == 0 {
		fmt.Println("\nNo results collected yet.")
		return nil
	}

	for topic, text := range results {
		fmt.Printf("\n%s\n%s\n", colorize(colorBold, topic), text)
	}
	return nil
}

// --- state ---

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the current emotional state estimate",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/state")
		if err != nil {
			return err
		}

		var view struct {
			State     map[string]float64 `json:"state"`
			Dominant  string             `json:"dominant"`
			Score     float64            `json:"score"`
			Exchanges int                `json:"exchanges"`
			Meta      struct {
				Color string `json:"color"`
				Note  string `json:"note"`
				Chord string `json:"chord"`
				Icon  string `json:"icon"`
			} `json:"meta"`
		}
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		for _, d := range state.Order {
			score := view.State[string(d)]
			bar := strings.Repeat("█", int(score/5))
			fmt.Printf("  %-10s %5.1f  %s\n", d, score, colorize(colorCyan, bar))
		}
		fmt.Println()
		printStatus("Dominant", "%s %s (%.0f%%)", view.Meta.Icon, view.Dominant, view.Score)
		printStatus("Resonance", "%s - %s", view.Meta.Chord, view.Meta.Note)
		printStatus("Exchanges", "%d", view.Exchanges)
		return nil
	},
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session (state, transcript, journal, research)",
	RunE: func(cmd *cobra.Command, args []string) error {
		asCSV, _ := cmd.Flags().GetBool("csv")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/export"
		if asCSV {
			path = "/export.csv"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		body, err := readBody(resp)
		if err != nil {
			return err
		}

		if output == "" {
			fmt.Print(body)
			if !strings.HasSuffix(body, "\n") {
				fmt.Println()
			}
		} else {
			if err := os.WriteFile(output, []byte(body), 0o600); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			printSuccess("Session exported to %s", output)
		}

		if !asCSV {
			printExportSummary(body)
		}
		return nil
	},
}

// printExportSummary renders the chat/journal/research counts for a JSON
// export body.
func printExportSummary(body string) {
	var export struct {
		Transcript []json.RawMessage          `json:"chatHistory"`
		Journal    []json.RawMessage          `json:"journalEntries"`
		Research   map[string]json.RawMessage `json:"researchResults"`
	}
	if err := json.Unmarshal([]byte(body), &export); err != nil {
		return
	}
	printStatus("Chat messages", "%d", len(export.Transcript))
	printStatus("Journal entries", "%d", len(export.Journal))
	printStatus("Research topics", "%d", len(export.Research))
}

func init() {
	exportCmd.Flags().Bool("csv", false, "export as CSV instead of JSON")
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// --- logs ---

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the remote call audit log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/calls")
		if err != nil {
			return err
		}

		var entries []struct {
			Timestamp string `json:"timestamp"`
			Endpoint  string `json:"endpoint"`
			Method    string `json:"method"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No remote calls recorded yet.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %-6s %s\n", e.Timestamp, colorize(colorBold, e.Method), e.Endpoint)
		}
		return nil
	},
}

// --- cleanup ---

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all server-side objects created this session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/objects")
		if err != nil {
			return err
		}

		var result struct {
			Released int      `json:"released"`
			Errors   []string `json:"errors"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Released %d object(s)", result.Released)
		for _, msg := range result.Errors {
			printWarning("%s", msg)
		}
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
		keys := config.ShowAll(config.LoadUnchecked())
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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"video-rag-be/pkg/transcript"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRankCommand() *cobra.Command {
	var (
		path      string
		label     string
		query     string
		timestamp float64
		window    float64
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a transcript window the way the pipeline does",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			var entries []transcript.Entry
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("parse transcript: %w", err)
			}

			ranked := transcript.Rank(entries, label, query, timestamp, window)
			out := cmd.OutOrStdout()
			if len(ranked) == 0 {
				fmt.Fprintln(out, "No entries in window")
				return nil
			}

			keywords := transcript.Keywords(label, query)
			hit := color.New(color.FgGreen)
			for _, e := range ranked {
				n := transcript.Score(e.Text, keywords)
				line := fmt.Sprintf("[%7.1fs] (%d) %s", e.Start, n, e.Text)
				if n > 0 {
					hit.Fprintln(out, line)
				} else {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "transcript", "t", "", "JSON file with [{text,start,duration}]")
	cmd.Flags().StringVar(&label, "label", "", "Visual label of the snippet")
	cmd.Flags().StringVarP(&query, "query", "q", "", "User question")
	cmd.Flags().Float64Var(&timestamp, "timestamp", 0, "Playback position in seconds")
	cmd.Flags().Float64Var(&window, "window", transcript.DefaultWindowSeconds, "Window width in seconds")
	_ = cmd.MarkFlagRequired("transcript")

	return cmd
}

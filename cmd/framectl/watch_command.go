package main

import (
	"context"
	"errors"
	"fmt"

	"video-rag-be/pkg/events"
	pktNats "video-rag-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		natsURL string
		durable string
		failed  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail answered (and optionally failed) questions from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			if natsURL == "" {
				natsURL = ctx.config().App.NatsURL
			}
			if natsURL == "" {
				return errors.New("no NATS url: pass --nats or set NATS_URL")
			}

			sub, err := pktNats.NewSubscriber(natsURL)
			if err != nil {
				return err
			}
			defer sub.Close()

			eventType := events.TypeRAGAnswered
			if failed {
				eventType = ""
			}

			out := cmd.OutOrStdout()
			cc, err := sub.Subscribe(cmd.Context(), eventType, durable, func(_ context.Context, e events.Event) error {
				fmt.Fprintln(out, formatEvent(e))
				return nil
			})
			if err != nil {
				return err
			}
			defer cc.Stop()

			fmt.Fprintln(out, "Watching for events, Ctrl+C to stop")
			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS url (defaults to NATS_URL)")
	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name; empty only sees new events")
	cmd.Flags().BoolVar(&failed, "all", false, "Include failed runs")

	return cmd
}

func formatEvent(e events.Event) string {
	p := e.Payload()
	ts := e.Timestamp().Format("15:04:05")
	switch e.EventType() {
	case events.TypeRAGAnswered:
		c := color.New(color.FgGreen)
		if passed, _ := p["passed"].(bool); !passed {
			c = color.New(color.FgYellow)
		}
		return c.Sprintf("%s answered  session=%v video=%v t=%v confidence=%v attempts=%v",
			ts, p["session_id"], p["video_id"], p["timestamp"], p["confidence"], p["attempts"])
	case events.TypeRAGFailed:
		return color.RedString("%s failed    session=%v video=%v reason=%v",
			ts, p["session_id"], p["video_id"], p["reason"])
	default:
		return fmt.Sprintf("%s %s %v", ts, e.EventType(), p)
	}
}

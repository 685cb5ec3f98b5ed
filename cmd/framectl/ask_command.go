package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"video-rag-be/internal/bootstrap"
	"video-rag-be/internal/dto"
	"video-rag-be/internal/pkg/logger"
	"video-rag-be/internal/pkg/serverutils"
	"video-rag-be/internal/repository/memory"
	"video-rag-be/internal/service"
	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/progress"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var (
		framePath string
		bboxFlag  string
		videoID   string
		timestamp float64
		query     string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run one question through the full pipeline in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			bbox, err := parseBBox(bboxFlag)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(framePath)
			if err != nil {
				return fmt.Errorf("read frame: %w", err)
			}

			req := &dto.QueryPayload{
				VideoId:      videoID,
				Timestamp:    timestamp,
				BBox:         bbox,
				Query:        query,
				FullFrameB64: base64.StdEncoding.EncodeToString(raw),
			}
			if err := serverutils.ValidateRequest(req); err != nil {
				return err
			}

			cfg := ctx.config()
			log := logger.NewNopLogger()
			if verbose {
				log = logger.NewZapLogger(cfg.App.LogFilePath, false)
			}
			defer log.Sync()

			cache := blobcache.NewMemoryCache()
			orchestrator, err := bootstrap.NewOrchestrator(cfg, cache, log)
			if err != nil {
				return err
			}
			bus := progress.NewBus(nil)
			defer bus.Close()

			svc := service.NewRagService(cache, cfg.Pipeline.CacheTTL, orchestrator, bus,
				memory.NewInteractionRepository(time.Hour, 1), nil, log)

			out := cmd.OutOrStdout()
			thought := color.New(color.FgCyan)
			answer := color.New(color.FgGreen, color.Bold)
			failure := color.New(color.FgRed)

			return svc.Stream(cmd.Context(), req, func(ev progress.Event) error {
				switch ev.Status {
				case progress.StatusProcessing:
					thought.Fprintf(out, "… %s\n", ev.Thought)
				case progress.StatusComplete:
					answer.Fprintln(out, "\n"+ev.Answer)
					if ev.Confidence != nil {
						fmt.Fprintf(out, "\nconfidence: %.2f  attempts: %d\n", *ev.Confidence, ev.Attempts)
					}
				case progress.StatusError:
					failure.Fprintln(out, ev.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&framePath, "frame", "f", "", "Frame image (png, jpeg or webp)")
	cmd.Flags().StringVar(&bboxFlag, "bbox", "", "Selection as x,y,w,h in frame pixels")
	cmd.Flags().StringVar(&videoID, "video", "", "YouTube video id")
	cmd.Flags().Float64Var(&timestamp, "timestamp", 0, "Playback position in seconds")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Question about the selection")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Write pipeline logs")
	_ = cmd.MarkFlagRequired("frame")
	_ = cmd.MarkFlagRequired("bbox")

	return cmd
}

func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be x,y,w,h, got %q", s)
	}
	out := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

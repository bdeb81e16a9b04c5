package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/speaker-stitch/metrics"
	"github.com/maastricht-university/speaker-stitch/orchestrator"
	"github.com/maastricht-university/speaker-stitch/stitch"
)

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBundle(out io.Writer, b *orchestrator.Bundle, showSegments bool) {
	fmt.Fprintf(out, "Session: %s\n", b.SessionID)
	fmt.Fprintln(out, renderSpeakers(b.Summary))
	if len(b.Transcript.Boundaries) > 0 {
		fmt.Fprintln(out, renderBoundaries(b.Transcript.Boundaries))
	}
	if showSegments {
		fmt.Fprintln(out, renderSegments(b.Transcript.Segments))
	}
	if n := b.Transcript.ReviewCount(); n > 0 {
		fmt.Fprintf(out, "%d speaker link(s) below the review threshold\n", n)
	}
	if len(b.FailedChunks) > 0 {
		fmt.Fprintf(out, "Chunks stitched as silent after diarization failure: %v\n", b.FailedChunks)
	}
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var asJSON, showSegments bool

	cmd := &cobra.Command{
		Use:   "run <audio>",
		Short: "Chunk, diarize and stitch a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if conf.Metrics.Addr != "" {
				serveMetrics(runCtx, conf.Metrics.Addr, ctx.log)
			}

			p, err := orchestrator.NewPipeline(runCtx, conf, ctx.log)
			if err != nil {
				return err
			}
			res, err := p.Run(runCtx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res.Bundle)
			}
			out := cmd.OutOrStdout()
			printBundle(out, res.Bundle, showSegments)
			fmt.Fprintf(out, "Written to %s\n", res.SessionDir)
			if res.Published != nil {
				fmt.Fprintf(out, "Published as %s (%s)\n", res.Published.ID, res.Published.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session bundle as JSON")
	cmd.Flags().BoolVar(&showSegments, "segments", false, "Print the merged transcript")
	return cmd
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var duration float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the chunk layout for a recording length",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pl, err := stitch.NewPlanner(conf.Chunking.ChunkLength, conf.Chunking.Overlap, conf.Chunking.MaxChunks)
			if err != nil {
				return err
			}
			pl.FallbackDuration = conf.Chunking.FallbackDuration
			plan := pl.Plan(duration)
			if asJSON {
				return writeJSON(cmd, plan)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPlan(plan))
			for _, n := range planNotes(plan) {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "Recording length in seconds (0 means unknown)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	return cmd
}

func newStitchCommand(ctx *commandContext) *cobra.Command {
	var asJSON, showSegments, write bool

	cmd := &cobra.Command{
		Use:   "stitch <chunks.json>",
		Short: "Stitch pre-diarized chunks without audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			files, err := orchestrator.LoadChunkFiles(args[0])
			if err != nil {
				return err
			}
			b, err := orchestrator.StitchChunkFiles(files, stitch.NewMatcher(conf.Matching), ctx.log)
			if err != nil {
				return err
			}
			b.AudioPath = args[0]
			if write {
				dir, _, _, err := orchestrator.Persist(conf.Paths.Outputs, b)
				if err != nil {
					return fmt.Errorf("persist: %w", err)
				}
				ctx.log.WithField("dir", dir).Info("session written")
			}
			if asJSON {
				return writeJSON(cmd, b)
			}
			printBundle(cmd.OutOrStdout(), b, showSegments)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session bundle as JSON")
	cmd.Flags().BoolVar(&showSegments, "segments", false, "Print the merged transcript")
	cmd.Flags().BoolVar(&write, "write", false, "Persist the bundle under paths.outputs")
	return cmd
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := conf.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})
	return configCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "speaker-stitch %s\n", version)
			return nil
		},
	}
}

// Command transcribe runs the sales-call transcription pipeline over a
// single audio file, or serves its HTTP surface for container
// deployment, per spec section 6's external interface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keweikao/sales-transcribe/internal/config"
	"github.com/keweikao/sales-transcribe/internal/errs"
	"github.com/keweikao/sales-transcribe/internal/logging"
	"github.com/keweikao/sales-transcribe/internal/metrics"
	"github.com/keweikao/sales-transcribe/internal/pipeline"
)

// Exit codes, per spec section 6: 0 success (even with some chunks
// failed), 1 configuration error, 2 input I/O error, 3 model load error.
const (
	exitOK        = 0
	exitConfig    = 1
	exitInputIO   = 2
	exitModelLoad = 3
	exitUnknown   = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		modelSize   string
		vadPreset   string
		workers     int
		formats     string
		outputDir   string
		deadlineSec int
		bindAddr    string
	)

	root := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe a long multi-speaker sales call recording",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&modelSize, "model", "", "whisper.cpp model size override: tiny, base, small, medium, large-v3")
	root.PersistentFlags().StringVar(&vadPreset, "vad-preset", "", "VAD preset override: meeting, presentation, noisy")
	root.PersistentFlags().IntVar(&workers, "workers", 0, "transcriber worker count override")
	root.PersistentFlags().StringVar(&formats, "formats", "", "comma-separated output formats override: txt,srt,vtt,json")
	root.PersistentFlags().StringVar(&outputDir, "output", "", "directory to write output files into (stdout if empty)")
	root.PersistentFlags().IntVar(&deadlineSec, "deadline", 0, "overall deadline in seconds; 0 disables it")

	runCmd := &cobra.Command{
		Use:   "run <audio-file>",
		Short: "Run the pipeline once over a single audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(args[0], configPath, modelSize, vadPreset, workers, formats, outputDir, deadlineSec)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Warm up and serve /healthz, /warmup, /metrics for container deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, bindAddr)
		},
	}
	serveCmd.Flags().StringVar(&bindAddr, "bind", "", "override the configured HTTP bind address")

	root.AddCommand(runCmd, serveCmd)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return exitOK
}

func loadConfig(configPath, modelSize, vadPreset string, workers int, formats string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if modelSize != "" {
		cfg.Transcriber.ModelSize = modelSize
	}
	if vadPreset != "" {
		cfg.VAD.Preset = vadPreset
	}
	if workers > 0 {
		cfg.Transcriber.MaxWorkers = workers
	}
	if formats != "" {
		cfg.OutputFormats = strings.Split(formats, ",")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runOnce(audioPath, configPath, modelSize, vadPreset string, workers int, formats, outputDir string, deadlineSec int) error {
	cfg, err := loadConfig(configPath, modelSize, vadPreset, workers, formats)
	if err != nil {
		return err
	}

	log := logging.NewWithConfig(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.ParseFormat(cfg.Logging.Format),
		Output: os.Stdout,
	})
	reg := metrics.New()

	p, err := pipeline.New(cfg, log, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := context.Background()
	if deadlineSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(deadlineSec)*time.Second)
		defer cancel()
	}

	final, err := p.Process(ctx, audioPath)
	if err != nil {
		return err
	}

	if err := writeOutputs(final, cfg.OutputFormats, outputDir); err != nil {
		return errs.InputIO("cmd.writeOutputs", err)
	}

	fmt.Printf("done: %d segments, %d chunks processed, %d chunks failed\n",
		final.TotalSegments, final.ChunksProcessed, final.ChunksFailed)
	return nil
}

func runServe(configPath, bindAddrOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if bindAddrOverride != "" {
		cfg.Server.BindAddress = bindAddrOverride
	}

	log := logging.NewWithConfig(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.ParseFormat(cfg.Logging.Format),
		Output: os.Stdout,
	})
	reg := metrics.New()

	p, err := pipeline.New(cfg, log, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	go p.Warmup()

	srv := pipeline.NewServer(cfg.Server.BindAddress, p, log)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	}
}

func exitCodeFor(err error) int {
	if kind, ok := errs.KindOf(err); ok {
		switch kind {
		case errs.KindConfig:
			return exitConfig
		case errs.KindInputIO:
			return exitInputIO
		case errs.KindModelLoad:
			return exitModelLoad
		}
	}
	return exitUnknown
}

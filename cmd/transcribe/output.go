package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/keweikao/sales-transcribe/internal/merger"
	"github.com/keweikao/sales-transcribe/internal/model"
)

// writeOutputs renders final in every requested format. With outputDir
// empty, each format is written to stdout separated by a banner line;
// otherwise each goes to <outputDir>/transcript.<ext>.
func writeOutputs(final model.FinalTranscript, formats []string, outputDir string) error {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", outputDir, err)
		}
	}

	for _, format := range formats {
		rendered, ext, err := render(final, format)
		if err != nil {
			return err
		}

		if outputDir == "" {
			fmt.Printf("--- %s ---\n%s\n", format, rendered)
			continue
		}

		dst := filepath.Join(outputDir, "transcript."+ext)
		if err := os.WriteFile(dst, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
	}
	return nil
}

func render(final model.FinalTranscript, format string) (string, string, error) {
	switch format {
	case "txt":
		return merger.Text(final), "txt", nil
	case "srt":
		return merger.SRT(final), "srt", nil
	case "vtt":
		return merger.VTT(final), "vtt", nil
	case "json":
		data, err := merger.JSON(final)
		if err != nil {
			return "", "", fmt.Errorf("render json: %w", err)
		}
		return string(data), "json", nil
	default:
		return "", "", fmt.Errorf("unknown output format %q", format)
	}
}

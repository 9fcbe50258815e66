package encode

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

// Archive serializes a slide set as a ZIP: one image entry per slide named
// by its 1-based zero-padded ordinal and rounded timestamp, a text
// placeholder entry for any slide whose image payload will not decode, and
// one summary entry. A single bad slide never aborts the archive.
func Archive(ctx context.Context, slideList []entity.Slide, baseName string, settings entity.ExtractionSettings) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, slide := range slideList {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name, data := archiveEntry(i, slide)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", name, err)
		}
	}

	w, err := zw.Create("slides_summary.txt")
	if err != nil {
		return nil, fmt.Errorf("create summary entry: %w", err)
	}
	if _, err := w.Write([]byte(Summary(slideList, baseName, settings))); err != nil {
		return nil, fmt.Errorf("write summary entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func archiveEntry(index int, slide entity.Slide) (string, []byte) {
	format, ok := decodableFormat(slide.Image)
	if !ok {
		name := fmt.Sprintf("slide_%02d_error.txt", index+1)
		body := fmt.Sprintf("Error processing slide %d at %.0fs: image payload not decodable", index+1, slide.Timestamp)
		return name, []byte(body)
	}

	ext := "jpg"
	if format == "png" {
		ext = "png"
	}
	return fmt.Sprintf("slide_%02d_%ds.%s", index+1, int(slide.Timestamp), ext), slide.Image
}

// Summary renders the human-readable slide listing included in the archive.
// Every slide appears here, including ones replaced by error placeholders,
// so nothing is dropped silently.
func Summary(slideList []entity.Slide, baseName string, settings entity.ExtractionSettings) string {
	var sb strings.Builder
	sb.WriteString("Extracted Slides Summary\n")
	sb.WriteString("========================\n")
	fmt.Fprintf(&sb, "Source: %s\n", baseName)
	fmt.Fprintf(&sb, "Total Slides: %d\n", len(slideList))
	fmt.Fprintf(&sb, "Extraction Date: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Correlation Threshold: %g\n", settings.CorrelationThreshold)
	fmt.Fprintf(&sb, "Min Interval: %gs\n", settings.MinInterval)
	fmt.Fprintf(&sb, "Max Slides: %d\n", settings.MaxSlides)
	sb.WriteString("\nSlide List:\n")

	for i, slide := range slideList {
		title := slide.Title
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		fmt.Fprintf(&sb, "%d. %s (%.0fs)", i+1, title, slide.Timestamp)
		if slide.Heuristic {
			sb.WriteString(" [heuristic]")
		}
		if _, ok := decodableFormat(slide.Image); !ok {
			sb.WriteString(" [image not decodable]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func decodableFormat(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	return format, true
}

// Package summary renders the end-of-run report of the parse and split commands.
package summary

import (
	"fmt"
	"math"
	"strings"

	"github.com/bnema/kmlx/internal/application"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 24

type RenderOptions struct {
	// ErrorLogPath is shown when the run saved an error log.
	ErrorLogPath string
}

func Render(result application.ParseResult, opts RenderOptions) (string, error) {
	return run(func(s styles) string {
		return renderParse(result, opts, s)
	})
}

func RenderSplit(result application.SplitResult, dryRun bool) (string, error) {
	return run(func(s styles) string {
		return renderSplit(result, dryRun, s)
	})
}

func renderParse(result application.ParseResult, opts RenderOptions, s styles) string {
	total := result.SearchCount + result.PlaceCount + result.UnknownCount
	lines := []string{
		s.title.Render("KML export"),
		s.header.Render(fmt.Sprintf("references: %d (search %d, place %d, unrecognized %d)",
			total, result.SearchCount, result.PlaceCount, result.UnknownCount)),
	}

	if result.Estimate != "" {
		lines = append(lines, s.section.Render(s.value.Render(result.Estimate)))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	resolved := len(result.Outcome.Placemarks)
	failed := len(result.Outcome.Errors)
	lines = append(lines, s.section.Render(resolvedLine(resolved, failed, s)))

	if result.Stopped() {
		lines = append(lines, s.warning.Render("stopped on first error"))
	}

	lines = append(lines, s.section.Render(writtenBlock(result.Written, s)))

	if result.ErrorLogWritten && opts.ErrorLogPath != "" {
		lines = append(lines, s.key.Render("error log: ")+s.value.Render(opts.ErrorLogPath))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSplit(result application.SplitResult, dryRun bool, s styles) string {
	lines := []string{
		s.title.Render("KML split"),
		s.header.Render(fmt.Sprintf("placemarks: %d, files: %d", result.Placemarks, result.Files)),
	}
	if dryRun {
		lines = append(lines, s.empty.Render("dry run, nothing written"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.section.Render(writtenBlock(result.Written, s)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func resolvedLine(resolved, failed int, s styles) string {
	total := resolved + failed
	percent := 100.0
	if total > 0 {
		percent = float64(resolved) * 100 / float64(total)
	}

	counts := s.good.Render(fmt.Sprintf("%d resolved", resolved))
	if failed > 0 {
		counts += s.value.Render(", ") + s.warning.Render(fmt.Sprintf("%d failed", failed))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("placemarks:"),
		" ",
		renderProgressBar(percent, barWidth, s),
		" ",
		s.value.Render(fmt.Sprintf("%3.0f%%", percent)),
		" ",
		counts,
	)
}

func writtenBlock(written []string, s styles) string {
	if len(written) == 0 {
		return s.empty.Render("No files written.")
	}

	parts := []string{s.key.Render(fmt.Sprintf("written (%d):", len(written)))}
	for _, location := range written {
		parts = append(parts, s.value.Render("  "+location))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	filled = min(max(filled, 0), width)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

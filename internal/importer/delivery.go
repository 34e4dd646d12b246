// internal/importer/delivery.go
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DeliveryEntry is one "<name> x <qty>" line of a delivery note
type DeliveryEntry struct {
	Line     int
	Name     string
	Quantity int
}

var (
	nameFirstRe = regexp.MustCompile(`(?i)^(.+?)\s+[x×]\s*(\d+)$`)
	qtyFirstRe  = regexp.MustCompile(`(?i)^(\d+)\s*[x×]\s+(.+)$`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// ParseDeliveryLines extracts entries from the text of a delivery note and
// counts the non-blank lines that were not entries.
func ParseDeliveryLines(lines []string) ([]DeliveryEntry, int) {
	var (
		entries []DeliveryEntry
		ignored int
	)
	for i, raw := range lines {
		line := strings.TrimSpace(spacesRe.ReplaceAllString(raw, " "))
		if line == "" {
			continue
		}

		var name, qty string
		if m := qtyFirstRe.FindStringSubmatch(line); m != nil {
			qty, name = m[1], m[2]
		} else if m := nameFirstRe.FindStringSubmatch(line); m != nil {
			name, qty = m[1], m[2]
		} else {
			ignored++
			continue
		}

		n, err := strconv.Atoi(qty)
		name = strings.TrimSpace(name)
		if err != nil || n <= 0 || name == "" {
			ignored++
			continue
		}
		entries = append(entries, DeliveryEntry{Line: i + 1, Name: name, Quantity: n})
	}
	return entries, ignored
}

// ExtractPDFLines returns the plain text lines of every page of the PDF at path
func ExtractPDFLines(ctx context.Context, path string, logger *slog.Logger) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var lines []string
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.WarnContext(ctx, "failed to extract text from page",
				slog.Int("page", pageNum),
				slog.String("error", err.Error()))
			continue
		}
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return lines, nil
}

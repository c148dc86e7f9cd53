// Package export writes day-grouped journal markdown files from feed entries.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-ports/vibelog/internal/models"
)

// RenderEntry produces a single ### block for one feed entry.
// The heading is the entry's local record time; body lines carry the raw
// content and, when present, the AI insight and tags.
func RenderEntry(e *models.FeedEntry) string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(e.DisplayTime().Format("15:04"))
	sb.WriteString("\n")
	sb.WriteString(e.RawContent)
	if e.AIInsight != "" {
		sb.WriteString("\n\n> ")
		sb.WriteString(strings.ReplaceAll(e.AIInsight, "\n", "\n> "))
	}
	if len(e.Tags) > 0 {
		sb.WriteString("\n\nTags: ")
		for i, tag := range e.Tags {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("#")
			sb.WriteString(tag)
		}
	}
	return sb.String()
}

// RenderDay produces a complete journal document for one day.
// Entries are grouped under their category heading, with categories emitted
// in the canonical order and unknown categories appended last.
func RenderDay(dateStr string, entries []models.FeedEntry) string {
	byCategory := make(map[string][]models.FeedEntry)
	for _, e := range entries {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.WriteString("date: ")
	sb.WriteString(dateStr)
	sb.WriteString("\n")
	sb.WriteString("entries: ")
	sb.WriteString(fmt.Sprintf("%d", len(entries)))
	sb.WriteString("\n")
	sb.WriteString("tags: [")
	sb.WriteString(strings.Join(collectTags(entries), ", "))
	sb.WriteString("]\n")
	sb.WriteString("---\n")
	sb.WriteString("\n# ")
	sb.WriteString(dateStr)
	sb.WriteString(" Journal\n")

	writeCategory := func(category string) {
		group := byCategory[category]
		if len(group) == 0 {
			return
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].DisplayTime().Before(group[j].DisplayTime())
		})

		heading := models.CategoryHeadings[category]
		if heading == "" {
			heading = category
		}
		sb.WriteString("\n## ")
		sb.WriteString(heading)
		sb.WriteString("\n")
		for _, e := range group {
			sb.WriteString("\n")
			sb.WriteString(RenderEntry(&e))
			sb.WriteString("\n")
		}
		delete(byCategory, category)
	}

	for _, category := range models.ValidCategories {
		writeCategory(category)
	}

	// Anything the backend classified outside the known set.
	var rest []string
	for category := range byCategory {
		rest = append(rest, category)
	}
	sort.Strings(rest)
	for _, category := range rest {
		writeCategory(category)
	}

	return sb.String()
}

// WriteJournal groups entries by local day and writes one
// <date>-journal.md file per day inside dir, creating dir if needed.
// Returns the written file paths in date order.
func WriteJournal(dir string, entries []models.FeedEntry) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	byDay := make(map[string][]models.FeedEntry)
	for _, e := range entries {
		day := e.DisplayTime().Format("2006-01-02")
		byDay[day] = append(byDay[day], e)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	var paths []string
	for _, day := range days {
		path := filepath.Join(dir, day+"-journal.md")
		content := RenderDay(day, byDay[day])
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil { // #nosec G306 -- journal files are meant to be user-readable
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// collectTags returns the sorted union of tags across entries.
func collectTags(entries []models.FeedEntry) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, e := range entries {
		for _, tag := range e.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

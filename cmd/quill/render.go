package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"quill/internal/api"
)

func renderTaskTable(tasks []api.TaskView) string {
	headers := []string{"ID", "Type", "Topic", "Status", "Score", "Updated"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		score := "-"
		if t.QualityScore != nil {
			score = fmt.Sprint(*t.QualityScore)
		}
		rows = append(rows, []string{
			shortID(t.ID),
			t.Type,
			truncate(t.Topic, 40),
			t.Status,
			score,
			t.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	return renderTable(headers, rows, aligns)
}

func renderTaskDetail(t api.TaskView) string {
	var b strings.Builder
	write := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%-18s %s\n", label+":", value)
	}
	write("ID", t.ID)
	write("Type", t.Type)
	write("Topic", t.Topic)
	write("Status", t.Status)
	write("Stage", t.Stage)
	if t.QualityScore != nil {
		write("Quality score", fmt.Sprint(*t.QualityScore))
	}
	if t.IterationCount > 0 {
		write("Iterations", fmt.Sprint(t.IterationCount))
	}
	write("Title", t.Title)
	if t.WordCount > 0 {
		write("Word count", fmt.Sprint(t.WordCount))
	}
	if len(t.Tags) > 0 {
		write("Tags", strings.Join(t.Tags, ", "))
	}
	write("Image", t.FeaturedImageRef)
	write("Published at", t.PublishTargetRef)
	write("Error", t.Error)
	write("Created", t.CreatedAt.Local().Format(time.DateTime))
	write("Updated", t.UpdatedAt.Local().Format(time.DateTime))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bettermarkers/internal/recovery"
)

func absPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

// actionLabel turns a recovery action such as drop_missing_media into
// "Drop Missing Media".
func actionLabel(action recovery.Action) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(action.String(), "_", " "))
}

func formatLastAttempt(job recovery.Job, now time.Time) string {
	if job.LastAttemptUnixMs == 0 {
		return "never"
	}
	at := job.LastAttempt()
	age := now.Sub(at).Round(time.Second)
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("%s (%s ago)", at.Local().Format("2006-01-02 15:04:05"), age)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// Package media implements YouTube audio search and download by shelling out
// to yt-dlp, plus the download conversation built on them.
package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SearchResult is one entry of a YouTube search.
type SearchResult struct {
	ID       string
	Title    string
	Uploader string
	URL      string
}

// Service abstracts search and download so flows can be tested without yt-dlp.
type Service interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	// Download fetches the audio track of url as mp3 and returns the file
	// path and track title. The caller owns the file and must remove it.
	Download(ctx context.Context, url string) (path string, title string, err error)
}

// Downloader runs the yt-dlp binary.
type Downloader struct {
	binary string
	dir    string
}

// NewDownloader creates a Downloader. Empty arguments fall back to "yt-dlp"
// on PATH and the OS temp directory.
func NewDownloader(binary, dir string) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Downloader{binary: binary, dir: dir}
}

type searchEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
}

// Search runs a flat ytsearch and parses the per-entry JSON lines.
func (d *Downloader) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 3
	}
	cmd := exec.CommandContext(ctx, d.binary,
		"--quiet", "--no-warnings",
		"--flat-playlist", "--dump-json",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w: %s", err, stderrOf(err))
	}

	var results []SearchResult
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry searchEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("yt-dlp search output: %w", err)
		}
		title := entry.Title
		if title == "" {
			title = "Unknown Title"
		}
		uploader := entry.Uploader
		if uploader == "" {
			uploader = "Unknown Uploader"
		}
		results = append(results, SearchResult{
			ID:       entry.ID,
			Title:    title,
			Uploader: uploader,
			URL:      "https://www.youtube.com/watch?v=" + entry.ID,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("yt-dlp search output: %w", err)
	}
	return results, nil
}

// Download extracts the audio track as mp3. yt-dlp prints the title and the
// final file path, one per line, in that order.
func (d *Downloader) Download(ctx context.Context, url string) (string, string, error) {
	cmd := exec.CommandContext(ctx, d.binary,
		"--quiet", "--no-warnings",
		"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		"--no-playlist",
		"-o", filepath.Join(d.dir, "%(title)s.%(ext)s"),
		"--no-simulate",
		"--print", "title",
		"--print", "after_move:filepath",
		url,
	)
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("yt-dlp download: %w: %s", err, stderrOf(err))
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("yt-dlp download: unexpected output %q", string(out))
	}
	title := strings.TrimSpace(lines[0])
	path := strings.TrimSpace(lines[len(lines)-1])
	if title == "" {
		title = "Unknown Title"
	}
	if path == "" {
		return "", "", fmt.Errorf("yt-dlp download: empty file path for %s", url)
	}
	return path, title, nil
}

func stderrOf(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return "no stderr"
}

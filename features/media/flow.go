package media

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/m3rciful/toolbot/core/conv"
)

// Kind identifies the audio download conversation.
const Kind conv.Kind = "download"

const (
	stateAwaitQuery     conv.State = "await_query"
	stateAwaitSelection conv.State = "await_selection"

	selectionPrefix = "download_"
	scratchResults  = "results"

	defaultSearchLimit = 3
)

type flow struct {
	svc   Service
	limit int
}

// DownloadFlow builds the /download conversation: a URL downloads directly,
// anything else searches YouTube and offers an inline selection.
func DownloadFlow(svc Service, searchLimit int) *conv.Definition {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	f := &flow{svc: svc, limit: searchLimit}
	return &conv.Definition{
		Kind:        Kind,
		Command:     "/download",
		Description: "Download a song from YouTube",
		Prompt:      "Please send me a YouTube URL or a song name to download:",
		Steps: []conv.Step{
			{State: stateAwaitQuery, Accepts: conv.TextFilter(), Handle: f.handleQuery},
			{State: stateAwaitSelection, Accepts: conv.CallbackFilter(selectionPrefix), Handle: f.handleSelection},
		},
	}
}

// IsURL reports whether the input should bypass search.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (f *flow) handleQuery(ctx context.Context, ev conv.Event, _ *conv.Session, t conv.Transport) (conv.Outcome, error) {
	input := strings.TrimSpace(ev.Text)

	if IsURL(input) {
		if err := t.SendText(ctx, ev.ChatID, "Downloading song from URL: "+input); err != nil {
			return conv.Outcome{}, err
		}
		if err := f.deliver(ctx, ev.ChatID, input, t); err != nil {
			return conv.Outcome{}, conv.Failf(err, "Error downloading song: %v", err)
		}
		return conv.Complete(), nil
	}

	if err := t.SendText(ctx, ev.ChatID, "Searching for: "+input); err != nil {
		return conv.Outcome{}, err
	}
	results, err := f.svc.Search(ctx, input, f.limit)
	if err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error searching for song: %v", err)
	}
	if len(results) == 0 {
		if err := t.SendText(ctx, ev.ChatID, "No results found for: "+input); err != nil {
			return conv.Outcome{}, err
		}
		return conv.Complete(), nil
	}

	choices := make([]conv.Choice, 0, len(results))
	for i, r := range results {
		choices = append(choices, conv.Choice{
			Label: fmt.Sprintf("%d. %s (%s)", i+1, r.Title, r.Uploader),
			Data:  selectionPrefix + strconv.Itoa(i),
		})
	}
	if err := t.SendChoices(ctx, ev.ChatID, "Please select a song to download:", choices); err != nil {
		return conv.Outcome{}, err
	}
	return conv.Continue(stateAwaitSelection, map[string]any{scratchResults: results}), nil
}

func (f *flow) handleSelection(ctx context.Context, ev conv.Event, s *conv.Session, t conv.Transport) (conv.Outcome, error) {
	index, err := strconv.Atoi(strings.TrimPrefix(ev.Callback, selectionPrefix))
	stored, _ := s.Value(scratchResults)
	results, ok := stored.([]SearchResult)
	if err != nil || !ok || index < 0 || index >= len(results) {
		return conv.Outcome{}, conv.Failf(fmt.Errorf("selection %q out of range", ev.Callback),
			"Invalid selection or search results expired.")
	}
	selected := results[index]

	if err := t.EditText(ctx, ev.ChatID, ev.MessageID, "Downloading: "+selected.Title); err != nil {
		return conv.Outcome{}, err
	}
	if err := f.deliver(ctx, ev.ChatID, selected.URL, t); err != nil {
		return conv.Outcome{}, conv.Failf(err, "Error downloading song: %v", err)
	}
	return conv.Complete(), nil
}

// deliver downloads the track, sends it, and removes the temp file on every
// exit path.
func (f *flow) deliver(ctx context.Context, chatID int64, url string, t conv.Transport) error {
	path, title, err := f.svc.Download(ctx, url)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return t.SendAudio(ctx, chatID, path, title, "Downloaded: "+title)
}

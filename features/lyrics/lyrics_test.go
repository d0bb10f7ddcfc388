package lyrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const azSearchPage = `<html><body>
<table><tr>
<td class="text-left"><a href="%s/az/lyrics">Test Artist - Test Song</a></td>
</tr></table>
</body></html>`

const azLyricsPage = `<html><body>
<div class="container main-page">
<div class="row">
<div class="col-xs-12 col-lg-8 text-center">
<div>
Hello from the first line<br>
and the second line<br>
<br>
third after a gap
</div>
</div>
</div>
</div>
</body></html>`

const geniusSearchPage = `<html><body>
<a class="mini_card" href="%s/genius/lyrics">Test Song</a>
</body></html>`

const geniusLyricsPage = `<html><body>
<div class="Lyrics__Container-sc-1ynbvzw-6">Genius first line<br>Genius second line</div>
</body></html>`

func newLyricsServer(t *testing.T, withAZ, withGenius bool) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/az/search", func(w http.ResponseWriter, _ *http.Request) {
		if !withAZ {
			fmt.Fprint(w, "<html><body>no results</body></html>")
			return
		}
		fmt.Fprintf(w, azSearchPage, srv.URL)
	})
	mux.HandleFunc("/az/lyrics", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, azLyricsPage)
	})
	mux.HandleFunc("/genius/search", func(w http.ResponseWriter, _ *http.Request) {
		if !withGenius {
			fmt.Fprint(w, "<html><body>no results</body></html>")
			return
		}
		fmt.Fprintf(w, geniusSearchPage, srv.URL)
	})
	mux.HandleFunc("/genius/lyrics", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, geniusLyricsPage)
	})

	client := NewClient(
		WithHTTPClient(srv.Client()),
		WithSearchURLs(srv.URL+"/az/search?q=", srv.URL+"/genius/search?q="),
	)
	return srv, client
}

func TestLookupAZLyrics(t *testing.T) {
	_, client := newLyricsServer(t, true, false)

	got, err := client.Lookup(context.Background(), "Test Song")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.Contains(got, "Hello from the first line") {
		t.Fatalf("lyrics = %q", got)
	}
	if !strings.Contains(got, "and the second line") {
		t.Fatalf("lyrics missing second line: %q", got)
	}
	if !strings.Contains(got, "\n") {
		t.Fatal("expected br tags to become newlines")
	}
}

func TestLookupFallsBackToGenius(t *testing.T) {
	_, client := newLyricsServer(t, false, true)

	got, err := client.Lookup(context.Background(), "Test Song")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.Contains(got, "Genius first line") {
		t.Fatalf("lyrics = %q", got)
	}
	if !strings.Contains(got, "Genius first line\nGenius second line") {
		t.Fatalf("expected newline between lines: %q", got)
	}
}

func TestLookupNotFoundAnywhere(t *testing.T) {
	_, client := newLyricsServer(t, false, false)

	_, err := client.Lookup(context.Background(), "Test Song")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/piccomad/internal/session"
)

// fakeCatalog backs a test server with one serie. Viewers are keyed by
// unit ID; a unit without one answers 500.
type fakeCatalog struct {
	title   string
	entries []mediaEntry
	viewers map[int]viewerData

	apiHits  int
	webHits  int
	apiQuery url.Values
}

func (fc *fakeCatalog) data() serieData {
	var d serieData
	d.Product.Title = fc.title
	d.EpisodeList = fc.entries
	return d
}

func catalogServer(t *testing.T, fc *fakeCatalog) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/haribo/api/web/v3/product/{id}/episodes", func(w http.ResponseWriter, r *http.Request) {
		fc.apiHits++
		fc.apiQuery = r.URL.Query()

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(serieAPIResponse{Data: fc.data()}))
	})

	mux.HandleFunc("GET /product/episode/{id}", func(w http.ResponseWriter, r *http.Request) {
		fc.webHits++

		var next serieNextData
		next.Props.PageProps.InitialState.ProductHome.ProductHome = fc.data()
		writeNextData(t, w, next)
	})

	mux.HandleFunc("GET /viewer/{serie}/{unit}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("unit"))
		require.NoError(t, err)

		data, ok := fc.viewers[id]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var next viewerNextData
		next.Props.PageProps.InitialState.Viewer.PData = data
		writeNextData(t, w, next)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func writeNextData(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	blob, err := json.Marshal(v)
	require.NoError(t, err)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><body><div id="__next"></div><script id="__NEXT_DATA__" type="application/json">%s</script></body></html>`, blob)
}

func guestResolver(t *testing.T, baseURL string) *Resolver {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return NewResolver(session.New(&http.Client{Jar: jar}, baseURL, nil), nil)
}

func authedResolver(t *testing.T, baseURL string) *Resolver {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "granted"}})

	return NewResolver(session.New(&http.Client{Jar: jar}, baseURL, nil), nil)
}

func episodeEntry(id, number int, useType string) mediaEntry {
	return mediaEntry{
		ID:         id,
		ProductID:  208,
		Title:      fmt.Sprintf("#%d Chapitre %d", number, number),
		OrderValue: number,
		UseType:    useType,
		MediaType:  "E",
	}
}

func volumeEntry(id, number int, useType string) mediaEntry {
	return mediaEntry{
		ID:        id,
		ProductID: 208,
		Volume:    number,
		UseType:   useType,
		MediaType: "V",
	}
}

func scrambledViewer(numbers ...int) viewerData {
	data := viewerData{IsScrambled: true}
	for _, n := range numbers {
		data.Img = append(data.Img, scrambledImage(n))
	}
	return data
}

func pageNumbers(pages []PageDescriptor) []int {
	numbers := make([]int, len(pages))
	for i, p := range pages {
		numbers[i] = p.Index
	}
	return numbers
}

func TestResolveAppliesSelectionAndAccess(t *testing.T) {
	fc := &fakeCatalog{
		title: "Les Chroniques du Vent",
		entries: []mediaEntry{
			episodeEntry(9001, 1, "FR03"),
			episodeEntry(9002, 2, "FR03"),
			episodeEntry(9003, 3, "PM00"),
			episodeEntry(9008, 8, "AB01"),
		},
		viewers: map[int]viewerData{
			9001: scrambledViewer(2, 1, 3),
			9008: scrambledViewer(1, 2),
		},
	}
	srv := catalogServer(t, fc)

	sel, err := ParseSelection("8,1,3")
	require.NoError(t, err)

	resolved, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, sel)
	require.NoError(t, err)

	assert.Equal(t, "Les Chroniques du Vent", resolved.Title)
	assert.Equal(t, 208, resolved.SerieID)
	require.Len(t, resolved.Units, 3)

	first := resolved.Units[0]
	assert.Equal(t, 1, first.Unit.Number)
	require.NoError(t, first.Err)
	assert.Equal(t, []int{1, 2, 3}, pageNumbers(first.Pages))
	assert.Equal(t, "KR9FHBRB81GVIXIH7SKRE4", first.Pages[0].ScrambleKey)

	locked := resolved.Units[1]
	assert.Equal(t, 3, locked.Unit.Number)
	assert.Empty(t, locked.Pages)

	var denied *AccessDeniedError
	require.ErrorAs(t, locked.Err, &denied)
	assert.Equal(t, AccessPaywalled, denied.Access)
	assert.Equal(t, 3, denied.Number)

	last := resolved.Units[2]
	assert.Equal(t, 8, last.Unit.Number)
	require.NoError(t, last.Err)
	assert.Equal(t, []int{1, 2}, pageNumbers(last.Pages))

	assert.Zero(t, fc.apiHits, "anonymous sessions scrape the product page")
	assert.Equal(t, 1, fc.webHits)
}

func TestResolveSignedInUsesCatalogAPI(t *testing.T) {
	fc := &fakeCatalog{
		title:   "Les Chroniques du Vent",
		entries: []mediaEntry{episodeEntry(9001, 1, "FR03")},
		viewers: map[int]viewerData{9001: scrambledViewer(1)},
	}
	srv := catalogServer(t, fc)

	resolved, err := authedResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, Selection{All: true})
	require.NoError(t, err)
	require.Len(t, resolved.Units, 1)
	require.NoError(t, resolved.Units[0].Err)

	assert.Equal(t, 1, fc.apiHits)
	assert.Zero(t, fc.webHits)
	assert.Equal(t, "E", fc.apiQuery.Get("episode_type"))
	assert.Equal(t, "208", fc.apiQuery.Get("product_id"))
}

func TestResolveAllSortsAndFiltersByType(t *testing.T) {
	fc := &fakeCatalog{
		title: "Les Chroniques du Vent",
		entries: []mediaEntry{
			volumeEntry(7002, 2, "FR00"),
			episodeEntry(9001, 1, "FR03"),
			volumeEntry(7001, 1, "FR00"),
		},
		viewers: map[int]viewerData{
			7001: scrambledViewer(1),
			7002: scrambledViewer(1),
		},
	}
	srv := catalogServer(t, fc)

	resolved, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Volume, Selection{All: true})
	require.NoError(t, err)
	require.Len(t, resolved.Units, 2)

	assert.Equal(t, 1, resolved.Units[0].Unit.Number)
	assert.Equal(t, 2, resolved.Units[1].Unit.Number)
	assert.Equal(t, "Tome 01", resolved.Units[0].Unit.Title)
	assert.Equal(t, Volume, resolved.Units[0].Unit.Type)
}

func TestResolveUnknownNumberAborts(t *testing.T) {
	fc := &fakeCatalog{
		title:   "Les Chroniques du Vent",
		entries: []mediaEntry{episodeEntry(9001, 1, "FR03")},
	}
	srv := catalogServer(t, fc)

	_, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, Selection{Numbers: []int{1, 99}})

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 99, notFound.Number)
	assert.Equal(t, 208, notFound.SerieID)
}

func TestResolveEmptySelection(t *testing.T) {
	r := guestResolver(t, "http://catalog.invalid")

	_, err := r.Resolve(context.Background(), 208, Episode, Selection{})

	var invalid *InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestResolveReportsCatalogFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, Selection{All: true})

	var httpErr *session.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestResolveViewerFailureStaysOnUnit(t *testing.T) {
	fc := &fakeCatalog{
		title: "Les Chroniques du Vent",
		entries: []mediaEntry{
			episodeEntry(9001, 1, "FR03"),
			episodeEntry(9002, 2, "FR03"),
		},
		viewers: map[int]viewerData{
			9002: scrambledViewer(1, 2),
		},
	}
	srv := catalogServer(t, fc)

	resolved, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, Selection{All: true})
	require.NoError(t, err)
	require.Len(t, resolved.Units, 2)

	var httpErr *session.HTTPError
	require.ErrorAs(t, resolved.Units[0].Err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)

	require.NoError(t, resolved.Units[1].Err)
	assert.Equal(t, []int{1, 2}, pageNumbers(resolved.Units[1].Pages))
}

func TestResolveChecksDeclaredPageCount(t *testing.T) {
	entry := episodeEntry(9001, 1, "FR03")
	entry.PageCount = 5

	fc := &fakeCatalog{
		title:   "Les Chroniques du Vent",
		entries: []mediaEntry{entry},
		viewers: map[int]viewerData{9001: scrambledViewer(1, 2)},
	}
	srv := catalogServer(t, fc)

	resolved, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, Selection{All: true})
	require.NoError(t, err)
	require.Len(t, resolved.Units, 1)

	var parseErr *ParseError
	require.ErrorAs(t, resolved.Units[0].Err, &parseErr)
	assert.Contains(t, parseErr.Error(), "declares 5 pages")
}

func TestResolveRecordsPerPageFailures(t *testing.T) {
	viewer := viewerData{
		IsScrambled: true,
		Img: []viewerImage{
			scrambledImage(1),
			{Path: "i00002.jpg"},
			scrambledImage(3),
		},
	}

	fc := &fakeCatalog{
		title:   "Les Chroniques du Vent",
		entries: []mediaEntry{episodeEntry(9001, 1, "FR03")},
		viewers: map[int]viewerData{9001: viewer},
	}
	srv := catalogServer(t, fc)

	resolved, err := guestResolver(t, srv.URL).Resolve(context.Background(), 208, Episode, Selection{All: true})
	require.NoError(t, err)
	require.Len(t, resolved.Units, 1)

	unit := resolved.Units[0]
	require.NoError(t, unit.Err)
	assert.Equal(t, []int{1, 3}, pageNumbers(unit.Pages))
	require.Len(t, unit.PageErrs, 1)
	require.Contains(t, unit.PageErrs, 2, "broken entry sits at list position 2")
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/piccomad/internal/session"
)

// Resolver turns a serie ID plus a unit selection into the concrete page
// descriptors the downloader has to fetch. It speaks both catalog
// surfaces: the JSON API when the session is signed in, the public
// product page otherwise.
type Resolver struct {
	session *session.Session
	log     interface{ Debugf(string, ...any) }
}

// NewResolver binds a resolver to a session. The logger may be nil.
func NewResolver(s *session.Session, log interface{ Debugf(string, ...any) }) *Resolver {
	return &Resolver{session: s, log: log}
}

// Resolved is the plan for one serie: its display title plus one
// resolution per selected unit, in ascending unit order.
type Resolved struct {
	SerieID int
	Title   string
	Units   []UnitResolution
}

// UnitResolution carries everything known about one selected unit. Err
// is set when the whole unit is out of reach (locked, fetch failed,
// viewer unparsable). PageErrs records pages that dropped out one by
// one while their siblings in Pages remain downloadable.
type UnitResolution struct {
	Unit     Unit
	Pages    []PageDescriptor
	PageErrs map[int]error
	Err      error
}

// Resolve fetches the serie catalog, applies the selection and shapes a
// download plan. A unit number the serie does not have aborts the whole
// resolve, a typo being the likeliest explanation. A unit that exists
// but cannot be read only fails that unit; the rest of the selection
// still resolves.
func (r *Resolver) Resolve(ctx context.Context, serieID int, t UnitType, sel Selection) (*Resolved, error) {
	if sel.Empty() {
		return nil, &InvalidRequestError{Reason: "no units selected"}
	}

	title, units, err := r.fetchSerie(ctx, serieID, t)
	if err != nil {
		return nil, err
	}

	picked, err := pickUnits(serieID, t, units, sel)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{
		SerieID: serieID,
		Title:   title,
		Units:   make([]UnitResolution, 0, len(picked)),
	}
	for _, unit := range picked {
		resolved.Units = append(resolved.Units, r.resolveUnit(ctx, unit))
	}

	return resolved, nil
}

// fetchSerie lists the serie's units of one type. Signed-in sessions get
// the episode API, anonymous ones scrape the public product page, which
// embeds the same catalog in its Next.js state.
func (r *Resolver) fetchSerie(ctx context.Context, serieID int, t UnitType) (string, []Unit, error) {
	var data serieData

	if r.session.Authenticated() {
		u := fmt.Sprintf("%s/api/haribo/api/web/v3/product/%d/episodes?episode_type=%s&product_id=%d",
			r.session.BaseURL(), serieID, t.apiCode(), serieID)

		var resp serieAPIResponse
		if err := r.getJSON(ctx, "fetch serie catalog", u, &resp); err != nil {
			return "", nil, err
		}
		data = resp.Data
	} else {
		u := fmt.Sprintf("%s/product/episode/%d", r.session.BaseURL(), serieID)

		var next serieNextData
		if err := r.getNextData(ctx, "fetch serie page", u, &next); err != nil {
			return "", nil, err
		}
		data = next.Props.PageProps.InitialState.ProductHome.ProductHome
	}

	units := make([]Unit, 0, len(data.EpisodeList))
	for _, m := range data.EpisodeList {
		// The web page lists both types; the API call already filters.
		if m.MediaType != t.apiCode() {
			continue
		}

		unit, err := newUnit(m)
		if err != nil {
			return "", nil, &ParseError{Subject: fmt.Sprintf("serie %d catalog", serieID), Err: err}
		}
		units = append(units, unit)
	}

	if r.log != nil {
		r.log.Debugf("serie %d: %d %ss listed\n", serieID, len(units), t)
	}

	return data.Product.Title, units, nil
}

// pickUnits maps the selection onto the catalog, ascending by number.
func pickUnits(serieID int, t UnitType, units []Unit, sel Selection) ([]Unit, error) {
	if sel.All {
		picked := make([]Unit, len(units))
		copy(picked, units)
		sort.SliceStable(picked, func(i, j int) bool { return picked[i].Number < picked[j].Number })
		return picked, nil
	}

	byNumber := make(map[int]Unit, len(units))
	for _, u := range units {
		if _, ok := byNumber[u.Number]; !ok {
			byNumber[u.Number] = u
		}
	}

	picked := make([]Unit, 0, len(sel.Numbers))
	for _, n := range sel.Numbers {
		u, ok := byNumber[n]
		if !ok {
			return nil, &NotFoundError{SerieID: serieID, Type: t, Number: n}
		}
		picked = append(picked, u)
	}

	return picked, nil
}

// resolveUnit fetches the viewer for one unit and extracts its pages.
// Every failure stays on the unit so the sibling units keep resolving.
func (r *Resolver) resolveUnit(ctx context.Context, unit Unit) UnitResolution {
	res := UnitResolution{Unit: unit}

	if !unit.Readable() {
		res.Err = &AccessDeniedError{
			SerieID: unit.SerieID,
			Type:    unit.Type,
			Number:  unit.Number,
			Access:  unit.Access,
		}
		return res
	}

	u := fmt.Sprintf("%s/viewer/%d/%d", r.session.BaseURL(), unit.SerieID, unit.ID)

	var next viewerNextData
	if err := r.getNextData(ctx, "fetch viewer", u, &next); err != nil {
		res.Err = err
		return res
	}
	data := next.Props.PageProps.InitialState.Viewer.PData

	if unit.PageCount > 0 && len(data.Img) != unit.PageCount {
		res.Err = &ParseError{
			Subject: unit.Label() + " viewer",
			Err:     fmt.Errorf("catalog declares %d pages, viewer lists %d", unit.PageCount, len(data.Img)),
		}
		return res
	}

	pages, pageErrs, err := buildPages(data)
	if err != nil {
		res.Err = &ParseError{Subject: unit.Label() + " viewer", Err: err}
		return res
	}
	if len(pages) == 0 {
		res.Err = &ParseError{
			Subject: unit.Label() + " viewer",
			Err:     fmt.Errorf("no usable pages (%d listed)", len(data.Img)),
		}
		return res
	}

	res.Pages = pages
	if len(pageErrs) > 0 {
		res.PageErrs = pageErrs
	}

	if r.log != nil {
		r.log.Debugf("%s: %d pages, %d unusable\n", unit.Label(), len(pages), len(pageErrs))
	}

	return res
}

// getJSON fetches and decodes one API response.
func (r *Resolver) getJSON(ctx context.Context, op, rawURL string, v any) error {
	resp, err := r.session.Get(ctx, op, rawURL, "application/json")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ParseError{Subject: op + " response", Err: err}
	}

	return nil
}

// getNextData pulls the state blob Next.js embeds in every rendered
// page. Everything the viewer and the product page know is in there.
func (r *Resolver) getNextData(ctx context.Context, op, rawURL string, v any) error {
	resp, err := r.session.Get(ctx, op, rawURL, "text/html")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return &ParseError{Subject: op + " document", Err: err}
	}

	raw := doc.Find("script#__NEXT_DATA__").Text()
	if raw == "" {
		return &ParseError{Subject: op + " document", Err: errors.New("no __NEXT_DATA__ script")}
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &ParseError{Subject: op + " state", Err: err}
	}

	return nil
}

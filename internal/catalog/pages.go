package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
)

// Scrambled pages default to this grid when the viewer payload does not
// spell one out.
const (
	defaultGridRows = 4
	defaultGridCols = 4
)

// Page image filenames carry the 1-based page number (…/i00016.jpg).
var pageNumberRe = regexp.MustCompile(`i0*([0-9]+)\..{3,4}$`)

// pageNumber extracts the reading-order index from an image URL.
func pageNumber(u *url.URL) (int, error) {
	m := pageNumberRe.FindStringSubmatch(path.Base(u.Path))
	if m == nil {
		return 0, fmt.Errorf("no page number in %q", path.Base(u.Path))
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("no page number in %q", path.Base(u.Path))
	}

	return n, nil
}

// scrambleSeed recovers the descrambling seed from an image URL. The `q`
// query parameter is the raw key; it is rotated left by a pivot derived
// from the digit sum of the `expires` parameter. The rotation must match
// the image host byte for byte or every tile lands in the wrong place.
func scrambleSeed(u *url.URL) (string, error) {
	q := u.Query()

	key := q.Get("q")
	if key == "" {
		return "", errors.New("missing q parameter")
	}

	expires := q.Get("expires")
	if expires == "" {
		return "", errors.New("missing expires parameter")
	}

	checksum := 0
	for _, r := range expires {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("expires %q is not a number", expires)
		}
		checksum += int(r - '0')
	}

	pivot := (len(key) - checksum%len(key)) % len(key)

	return key[pivot:] + key[:pivot], nil
}

// buildPages shapes the viewer payload into ordered page descriptors.
// Pages whose descriptor cannot be built fail individually: good pages
// of the same unit still download. The returned descriptors are sorted
// by page number, the catalog's declared reading order.
func buildPages(data viewerData) ([]PageDescriptor, map[int]error, error) {
	pages := make([]PageDescriptor, 0, len(data.Img))
	pageErrs := make(map[int]error)

	for i, img := range data.Img {
		desc, err := buildPage(data, img)
		if err != nil {
			// Without a parsed number the list position names the page.
			idx := desc.Index
			if idx == 0 {
				idx = i + 1
			}
			pageErrs[idx] = &ParseError{Subject: fmt.Sprintf("page %d descriptor", idx), Err: err}
			continue
		}
		pages = append(pages, desc)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	for i := 1; i < len(pages); i++ {
		if pages[i].Index == pages[i-1].Index {
			return nil, nil, fmt.Errorf("duplicate page number %d", pages[i].Index)
		}
	}

	return pages, pageErrs, nil
}

// buildPage shapes one viewer image entry. A partial descriptor with the
// index set comes back alongside the error when the URL at least parsed,
// so the failure can be reported against the right page.
func buildPage(data viewerData, img viewerImage) (PageDescriptor, error) {
	u, err := url.Parse(img.Path)
	if err != nil {
		return PageDescriptor{}, fmt.Errorf("image URL: %w", err)
	}
	if !u.IsAbs() {
		return PageDescriptor{}, fmt.Errorf("image URL %q is not absolute", img.Path)
	}

	number, err := pageNumber(u)
	if err != nil {
		return PageDescriptor{}, err
	}

	desc := PageDescriptor{
		URL:   img.Path,
		Index: number,
	}

	if !data.IsScrambled {
		return desc, nil
	}

	seed, err := scrambleSeed(u)
	if err != nil {
		return desc, err
	}

	grid := gridSpec{Rows: defaultGridRows, Cols: defaultGridCols}
	if data.Grid != nil {
		grid = *data.Grid
	}
	if img.Grid != nil {
		grid = *img.Grid
	}
	if grid.Rows <= 0 || grid.Cols <= 0 {
		return desc, fmt.Errorf("grid %dx%d is not usable", grid.Rows, grid.Cols)
	}

	desc.ScrambleKey = seed
	desc.Rows = grid.Rows
	desc.Cols = grid.Cols

	return desc, nil
}

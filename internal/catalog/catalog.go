package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// UnitType tells single episodes from complete volumes.
type UnitType string

const (
	Episode UnitType = "episode"
	Volume  UnitType = "volume"
)

// ParseUnitType reads the CLI spelling of a unit type.
func ParseUnitType(s string) (UnitType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "episode", "e":
		return Episode, nil
	case "volume", "v":
		return Volume, nil
	}

	return "", &InvalidRequestError{Reason: fmt.Sprintf("%q is not a unit type (episode or volume)", s)}
}

func (t UnitType) String() string {
	return string(t)
}

// apiCode is the catalog's one-letter spelling of the type.
func (t UnitType) apiCode() string {
	if t == Volume {
		return "V"
	}

	return "E"
}

// AccessType classifies who may read a unit.
type AccessType string

const (
	// AccessFree units are readable by anyone.
	AccessFree AccessType = "free"
	// AccessTemporaryFree units are unlocked for a while by a wait-until-free ticket.
	AccessTemporaryFree AccessType = "temporary-free"
	// AccessWaitUntilFree units need a ticket the session has not spent.
	AccessWaitUntilFree AccessType = "wait-until-free"
	// AccessPaywalled units must be bought.
	AccessPaywalled AccessType = "paywalled"
	// AccessOwned units were bought by the signed-in account.
	AccessOwned AccessType = "owned"
)

// parseAccessType maps the catalog's use_type code (first two characters
// carry the class) to an access class.
func parseAccessType(useType string) (AccessType, error) {
	if len(useType) < 2 {
		return "", fmt.Errorf("%q is not an access type", useType)
	}

	switch useType[:2] {
	case "FR":
		return AccessFree, nil
	case "RD":
		return AccessTemporaryFree, nil
	case "WF":
		return AccessWaitUntilFree, nil
	case "PM":
		return AccessPaywalled, nil
	case "AB":
		return AccessOwned, nil
	}

	return "", fmt.Errorf("%q is not an access type", useType)
}

// Readable reports whether the class grants the page images.
func (a AccessType) Readable() bool {
	switch a {
	case AccessFree, AccessTemporaryFree, AccessOwned:
		return true
	}

	return false
}

// Unit is one episode or volume of a serie, immutable once resolved.
type Unit struct {
	ID        int
	SerieID   int
	Type      UnitType
	Number    int
	Title     string
	Access    AccessType
	PageCount int
}

// Readable reports whether the session that resolved the unit may fetch
// its pages.
func (u Unit) Readable() bool {
	return u.Access.Readable()
}

// Label is the short form used for progress bars and log lines.
func (u Unit) Label() string {
	if u.Type == Volume {
		return fmt.Sprintf("Vol.%02d", u.Number)
	}

	return fmt.Sprintf("Ep.%03d", u.Number)
}

// PageDescriptor locates one page image and carries everything needed to
// rebuild it. Descriptors never change after resolution.
type PageDescriptor struct {
	URL         string
	Index       int
	ScrambleKey string
	Rows        int
	Cols        int
}

// Scrambled reports whether the image needs descrambling before it is
// readable.
func (p PageDescriptor) Scrambled() bool {
	return p.ScrambleKey != ""
}

// Episode titles arrive prefixed with their number ("#12 ..."), already
// carried separately.
var episodeTitlePrefix = regexp.MustCompile(`^#\d+ `)

// newUnit shapes a catalog media entry into a Unit.
func newUnit(m mediaEntry) (Unit, error) {
	access, err := parseAccessType(m.UseType)
	if err != nil {
		return Unit{}, err
	}

	var t UnitType
	switch m.MediaType {
	case "E":
		t = Episode
	case "V":
		t = Volume
	default:
		return Unit{}, fmt.Errorf("%q is not a media type", m.MediaType)
	}

	number := m.OrderValue
	if t == Volume {
		number = m.Volume
	}

	var title string
	switch {
	case t == Volume:
		title = fmt.Sprintf("Tome %02d", number)
	case m.Title == "":
		title = fmt.Sprintf("Episode %03d", number)
	default:
		title = fmt.Sprintf("%03d - %s", number, episodeTitlePrefix.ReplaceAllString(m.Title, ""))
	}

	return Unit{
		ID:        m.ID,
		SerieID:   m.ProductID,
		Type:      t,
		Number:    number,
		Title:     title,
		Access:    access,
		PageCount: m.PageCount,
	}, nil
}

package zones

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/browser/browsertest"
	"github.com/JakeFAU/listing-extractor/internal/navigator"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

type nopPauser struct{}

func (nopPauser) Pause(context.Context, time.Duration) {}

func newScraper(logger *zap.Logger) *Scraper {
	nav := navigator.New(navigator.Config{Settle: pacing.Range{}, Pauser: nopPauser{}}, logger)
	return New(nav, pacing.Range{}, nopPauser{}, logger)
}

func TestDropWords(t *testing.T) {
	t.Parallel()

	got, ok := DropWords("17.04 Zone R-1", 1)
	require.True(t, ok)
	require.Equal(t, "Zone R-1", got)

	got, ok = DropWords("Chapter 9 - Residential District", 2)
	require.True(t, ok)
	require.Equal(t, "- Residential District", got)

	_, ok = DropWords("Zone", 1)
	require.False(t, ok)

	got, ok = DropWords("  as is  ", 0)
	require.True(t, ok)
	require.Equal(t, "as is", got)
}

func TestCleanName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Residential District", CleanName("- Residential District"))
	require.Equal(t, "Residential District", CleanName("9.10 - - Residential District"))
	require.Equal(t, "R-1 District", CleanName("Zoning-R-1 District"))
	require.Equal(t, "Commercial District", CleanName("Commercial District"))
}

func TestIsValidName(t *testing.T) {
	t.Parallel()

	require.True(t, IsValidName("Light Industrial District"))
	require.False(t, IsValidName("Districts established. Map adopted"))
	require.False(t, IsValidName("District boundaries"))
	require.False(t, IsValidName("  district map"))
}

func TestZoneName(t *testing.T) {
	t.Parallel()

	airway := DefaultSources()[0]
	name, ok := airway.ZoneName("17.04 Zone R-1 Single Family")
	require.True(t, ok)
	require.Equal(t, "Zone R-1 Single Family", name)
	_, ok = airway.ZoneName("17.02 Zone Classifications")
	require.False(t, ok)
	_, ok = airway.ZoneName("17.01 General Provisions")
	require.False(t, ok)
	_, ok = airway.ZoneName("17.03 zone overlay rules")
	require.False(t, ok, "Zone is matched case-sensitively")
	_, ok = airway.ZoneName("Zoned Residential Zone")
	require.False(t, ok, "links starting with Zone are not zones")

	loose := Source{SkipWords: 1, Require: "zone"}
	name, ok = loose.ZoneName("17.03 Zone Overlay")
	require.True(t, ok)
	require.Equal(t, "Zone Overlay", name)

	albion := DefaultSources()[1]
	name, ok = albion.ZoneName("Chapter 9 - R-1 Residential District")
	require.True(t, ok)
	require.Equal(t, "R-1 Residential District", name)
	_, ok = albion.ZoneName("Chapter 9 - District boundaries")
	require.False(t, ok)
	_, ok = albion.ZoneName("Chapter 9")
	require.False(t, ok)
}

func TestSourceValidate(t *testing.T) {
	t.Parallel()

	for _, s := range DefaultSources() {
		require.NoError(t, s.Validate(), s.URL)
	}
	require.Error(t, Source{}.Validate())
	require.Error(t, Source{URL: "https://a"}.Validate())
	require.Error(t, Source{URL: "https://a", LinkSelector: "a"}.Validate())
	require.Error(t, Source{URL: "https://a", LinkSelector: "a", DescriptionSelectors: []string{"p"}, SkipWords: -1}.Validate())
}

const (
	indexURL  = "https://codes.example/wa/town"
	zoneOne   = "https://codes.example/wa/town/17.04"
	zoneTwo   = "https://codes.example/wa/town/17.05"
	zoneThree = "https://codes.example/wa/town/17.06"
)

func townSource() Source {
	return Source{
		URL:                  indexURL,
		Clicks:               []string{"#toc-17", "#missing"},
		LinkSelector:         "a.zone",
		SkipWords:            1,
		Require:              "Zone",
		DescriptionSelectors: []string{".Cite", ".P1"},
	}
}

func TestScrapeSourceCollectsZones(t *testing.T) {
	t.Parallel()

	d := browsertest.New()
	d.Serve(indexURL, &browsertest.Page{
		Links:     map[string][]string{"a.zone": {zoneOne, zoneTwo, "https://codes.example/about", zoneThree}},
		Texts:     map[string][]string{"a.zone": {"17.04 Zone R-1", "17.05 Zone C-2", "About", "17.06 Zone I-1"}},
		ClickErrs: map[string]error{"#missing": errors.New("no node")},
	})
	d.Serve(zoneOne, &browsertest.Page{Texts: map[string][]string{
		".Cite": {"17.04"},
		".P1":   {"Single family homes.", "Lots of 7,200 sq ft."},
	}})
	d.Serve(zoneTwo, &browsertest.Page{})
	d.FailOpen(zoneThree, errors.New("popup blocked"))

	core, logs := observer.New(zapcore.DebugLevel)
	zones, err := newScraper(zap.New(core)).ScrapeSource(context.Background(), d, townSource())
	require.NoError(t, err)
	require.Equal(t, []Zone{
		{Name: "Zone R-1", Description: "17.04 Single family homes. Lots of 7,200 sq ft.", Link: zoneOne},
		{Name: "Zone C-2", Description: DescriptionNotFound, Link: zoneTwo},
	}, zones)

	require.Equal(t, []string{d.MainHandle()}, d.Handles())
	require.Equal(t, d.MainHandle(), d.Current())
	require.Equal(t, 1, logs.FilterMessage("Element not found or clickable").Len())
	require.Equal(t, 1, logs.FilterMessage("Failed to scrape description").Len())
}

func TestScrapeSourceRejectsMisalignedSelectors(t *testing.T) {
	t.Parallel()

	d := browsertest.New()
	d.Serve(indexURL, &browsertest.Page{
		Links: map[string][]string{"a.zone": {zoneOne, zoneTwo}},
		Texts: map[string][]string{"a.zone": {"17.04 Zone R-1"}},
	})
	_, err := newScraper(nil).ScrapeSource(context.Background(), d, townSource())
	require.ErrorIs(t, err, ErrMisaligned)
}

func TestScrapeContinuesAfterFailedSource(t *testing.T) {
	t.Parallel()

	down := Source{URL: "https://down.example", LinkSelector: "a", DescriptionSelectors: []string{"p"}}
	d := browsertest.New()
	d.FailLoad(down.URL, errors.New("net::ERR_NAME_NOT_RESOLVED"))
	d.Serve(indexURL, &browsertest.Page{
		Links: map[string][]string{"a.zone": {zoneOne}},
		Texts: map[string][]string{"a.zone": {"17.04 Zone R-1"}},
	})
	d.Serve(zoneOne, &browsertest.Page{Texts: map[string][]string{".P1": {"Homes."}}})

	result, err := newScraper(nil).Scrape(context.Background(), d, []Source{down, townSource()})
	require.NoError(t, err)
	require.NotContains(t, result, down.URL)
	require.Equal(t, []Zone{{Name: "Zone R-1", Description: "Homes.", Link: zoneOne}}, result[indexURL])
	require.Equal(t, []string{down.URL, indexURL}, d.Loads())
}

func TestScrapeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := newScraper(nil).Scrape(ctx, browsertest.New(), []Source{townSource()})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, result)
}

// Session satisfies Browser so the zones command can drive a real session.
var _ Browser = (*browser.Session)(nil)

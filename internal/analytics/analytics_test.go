package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/storage"
	"github.com/JakeFAU/listing-extractor/internal/storage/memory"
)

func TestCleanPrice(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"78 500 $":           78500,
		"78\u00a0500\u00a0$": 78500,
		"1\u202f250 $":       1250,
		"$42.5":              42.5,
	}
	for raw, want := range cases {
		got, err := CleanPrice(raw)
		require.NoError(t, err, raw)
		require.InDelta(t, want, got, 1e-9, raw)
	}

	_, err := CleanPrice(" $ ")
	require.ErrorIs(t, err, ErrNoPrice)
	_, err = CleanPrice("договірна")
	require.ErrorContains(t, err, "parse price")
}

func TestTotalSize(t *testing.T) {
	t.Parallel()

	v, ok := TotalSize("81 м²")
	require.True(t, ok)
	require.InDelta(t, 81.0, v, 1e-9)

	v, ok = TotalSize("54/30/9 м²")
	require.True(t, ok)
	require.InDelta(t, 54.0, v, 1e-9)

	_, ok = TotalSize("м² 40")
	require.False(t, ok)
	_, ok = TotalSize("")
	require.False(t, ok)
}

func TestQuantileInterpolates(t *testing.T) {
	t.Parallel()

	sorted := []float64{1, 2, 3, 4}
	require.InDelta(t, 1.99, Quantile(sorted, LowQuantile), 1e-9)
	require.InDelta(t, 3.01, Quantile(sorted, HighQuantile), 1e-9)
	require.InDelta(t, 2.5, Quantile(sorted, 0.5), 1e-9)
	require.InDelta(t, 7.0, Quantile([]float64{7}, 0.33), 1e-9)
}

func TestThresholdsAreInclusive(t *testing.T) {
	t.Parallel()

	th := Thresholds{Low: 10, High: 20}
	require.Equal(t, Cheap, th.Categorize(10))
	require.Equal(t, Moderate, th.Categorize(10.5))
	require.Equal(t, Moderate, th.Categorize(20))
	require.Equal(t, Expensive, th.Categorize(20.01))
}

func doc(id, location, price, size string) storage.Document {
	return storage.Document{ID: id, Record: listing.Record{Location: location, Price: price, Size: size}}
}

func TestClassifySkipsUnusableDocuments(t *testing.T) {
	t.Parallel()

	items, th, skipped := Classify([]storage.Document{
		doc("a", "Центр", "1 000 $", "1 м²"),
		doc("b", "Центр", "2 000 $", "1 м²"),
		doc("c", "Салтівка", "3 000 $", "1 м²"),
		doc("d", "Салтівка", "4 000 $", "1 м²"),
		doc("e", "Салтівка", "договірна", "1 м²"),
		doc("f", "Салтівка", "4 000 $", "n/a"),
		doc("g", "Салтівка", "4 000 $", "0 м²"),
	})
	require.Equal(t, []string{"e", "f", "g"}, skipped)
	require.InDelta(t, 1990.0, th.Low, 1e-6)
	require.InDelta(t, 3010.0, th.High, 1e-6)

	got := make(map[string]Category, len(items))
	for _, it := range items {
		got[it.ID] = it.Category
	}
	require.Equal(t, map[string]Category{"a": Cheap, "b": Moderate, "c": Moderate, "d": Expensive}, got)
}

func TestClassifyEmpty(t *testing.T) {
	t.Parallel()

	items, th, skipped := Classify(nil)
	require.Empty(t, items)
	require.Empty(t, skipped)
	require.Equal(t, Thresholds{}, th)
}

func TestTopLocations(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Location: "A", PricePerSqm: 100},
		{Location: "A", PricePerSqm: 300},
		{Location: "B", PricePerSqm: 500},
		{Location: "C", PricePerSqm: 200},
		{Location: "D", PricePerSqm: 200},
		{Location: "E", PricePerSqm: 50},
		{Location: "F", PricePerSqm: 10},
	}
	top := TopLocations(items, DefaultTopN)
	require.Len(t, top, 5)
	require.Equal(t, LocationAverage{Location: "B", PricePerSqm: 500, Listings: 1}, top[0])
	require.Equal(t, LocationAverage{Location: "A", PricePerSqm: 200, Listings: 2}, top[1])
	require.Equal(t, "C", top[2].Location)
	require.Equal(t, "D", top[3].Location)
	require.Equal(t, "E", top[4].Location)

	require.Len(t, TopLocations(items, 0), 6)
}

func TestAnalyzerLabelsDocuments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewDocumentStore()
	ids := make(map[string]string)
	for _, r := range []listing.Record{
		{Title: "a", Location: "Центр", Price: "1 000 $", Size: "1 м²"},
		{Title: "b", Location: "Центр", Price: "2 000 $", Size: "1 м²"},
		{Title: "c", Location: "Салтівка", Price: "3 000 $", Size: "1 м²"},
		{Title: "d", Location: "Салтівка", Price: "4 000 $", Size: "1 м²"},
		{Title: "e", Location: "Салтівка", Price: "договірна", Size: "1 м²"},
	} {
		id, err := store.InsertOne(ctx, r)
		require.NoError(t, err)
		ids[r.Title] = id
	}

	summary, err := New(store, 0, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Categorized)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, map[Category]int{Cheap: 1, Moderate: 2, Expensive: 1}, summary.Counts)
	require.Len(t, summary.Top, 2)
	require.Equal(t, "Салтівка", summary.Top[0].Location)

	docs, err := store.Find(ctx)
	require.NoError(t, err)
	labels := make(map[string]string)
	for _, d := range docs {
		labels[d.ID] = d.Labels[CategoryLabel]
	}
	require.Equal(t, "Cheap", labels[ids["a"]])
	require.Equal(t, "Moderate", labels[ids["b"]])
	require.Equal(t, "Moderate", labels[ids["c"]])
	require.Equal(t, "Expensive", labels[ids["d"]])
	require.Empty(t, labels[ids["e"]])
}

func TestAnalyzerStopsOnUpdateError(t *testing.T) {
	t.Parallel()

	boom := errors.New("write conflict")
	store := &storage.MockDocumentStore{}
	store.On("Find", mock.Anything).Return([]storage.Document{
		doc("a", "Центр", "1 000 $", "1 м²"),
		doc("b", "Центр", "2 000 $", "1 м²"),
	}, nil)
	store.On("UpdateOne", mock.Anything, "a", map[string]string{CategoryLabel: "Cheap"}).Return(boom).Once()

	summary, err := New(store, 5, nil).Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, summary.Categorized)
	store.AssertNumberOfCalls(t, "UpdateOne", 1)
}

func TestAnalyzerFindError(t *testing.T) {
	t.Parallel()

	store := &storage.MockDocumentStore{}
	store.On("Find", mock.Anything).Return(nil, errors.New("timeout"))
	_, err := New(store, 5, nil).Run(context.Background())
	require.ErrorContains(t, err, "find documents")
}

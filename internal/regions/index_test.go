package regions_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/paulmach/orb"
)

var okayama = regions.Municipality{Name: "岡山市", Prefecture: "岡山県"}

type testFeature struct {
	props  map[string]interface{}
	coords [][][2]float64
}

func box(minX, minY, maxX, maxY float64) [][][2]float64 {
	return [][][2]float64{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func collection(t *testing.T, features ...testFeature) []byte {
	t.Helper()
	out := make([]map[string]interface{}, 0, len(features))
	for _, f := range features {
		out = append(out, map[string]interface{}{
			"type":       "Feature",
			"properties": f.props,
			"geometry":   map[string]interface{}{"type": "Polygon", "coordinates": f.coords},
		})
	}
	b, err := json.Marshal(map[string]interface{}{"type": "FeatureCollection", "features": out})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return b
}

func writeFixture(t *testing.T, data []byte) regions.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tier.geojson")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return regions.FileSource{Path: path}
}

func TestLoad_FiltersToMunicipality(t *testing.T) {
	var features []testFeature
	for i := 0; i < 10; i++ {
		city := "岡山市"
		if i >= 7 {
			city = "倉敷市"
		}
		x := 133.9 + float64(i)*0.01
		features = append(features, testFeature{
			props:  map[string]interface{}{"CITY_NAME": city, "S_NAME": fmt.Sprintf("町%d", i)},
			coords: box(x, 34.6, x+0.01, 34.61),
		})
	}

	idx := regions.NewIndex(okayama)
	err := idx.Load(context.Background(), []regions.TierSpec{{
		Tier:      regions.TierNeighborhood,
		Source:    writeFixture(t, collection(t, features...)),
		NameField: "S_NAME",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := idx.Counts()[regions.TierNeighborhood]; got != 7 {
		t.Errorf("expected 7 kept features, got %d", got)
	}
	for _, f := range idx.Features(regions.TierNeighborhood) {
		if f.Properties["CITY_NAME"] != "岡山市" {
			t.Errorf("feature %q from %q should have been filtered", f.Name, f.Properties["CITY_NAME"])
		}
	}
}

func TestLoad_NeighborhoodPrefectureContainsRule(t *testing.T) {
	data := collection(t,
		testFeature{props: map[string]interface{}{"PREF_NAME": "岡山県", "CITY_NAME": "岡山市北区", "S_NAME": "大供"}, coords: box(0, 0, 1, 1)},
		testFeature{props: map[string]interface{}{"PREF_NAME": "広島県", "CITY_NAME": "岡山市北区", "S_NAME": "偽物"}, coords: box(1, 0, 2, 1)},
		testFeature{props: map[string]interface{}{"N03_004": "岡山市", "N03_006": "表町"}, coords: box(2, 0, 3, 1)},
	)

	idx := regions.NewIndex(okayama)
	if err := idx.Load(context.Background(), []regions.TierSpec{{Tier: regions.TierNeighborhood, Source: writeFixture(t, data), NameField: "S_NAME"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := idx.Counts()[regions.TierNeighborhood]; got != 2 {
		t.Fatalf("expected 2 features, got %d", got)
	}
}

func TestLoad_CityAndWardUseN03(t *testing.T) {
	data := collection(t,
		testFeature{props: map[string]interface{}{"N03_004": "岡山市", "N03_005": "北区"}, coords: box(0, 0, 1, 1)},
		testFeature{props: map[string]interface{}{"N03_004": "岡山市", "N03_005": "南区"}, coords: box(0, 1, 1, 2)},
		testFeature{props: map[string]interface{}{"N03_004": "倉敷市"}, coords: box(1, 0, 2, 1)},
		testFeature{props: map[string]interface{}{"CITY_NAME": "岡山市"}, coords: box(2, 0, 3, 1)},
	)

	idx := regions.NewIndex(okayama)
	err := idx.Load(context.Background(), []regions.TierSpec{
		{Tier: regions.TierCity, Source: writeFixture(t, data), NameField: "N03_004"},
		{Tier: regions.TierWard, Source: writeFixture(t, data), NameField: "N03_005"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := idx.Counts()
	if counts[regions.TierCity] != 2 || counts[regions.TierWard] != 2 {
		t.Errorf("expected 2 city and 2 ward features, got %v", counts)
	}

	wards := idx.Features(regions.TierWard)
	if wards[0].Name != "北区" || wards[1].Name != "南区" {
		t.Errorf("unexpected ward names %q, %q", wards[0].Name, wards[1].Name)
	}
}

func TestLoad_HTTPFailureIsDistinctFromEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty.geojson" {
			_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx := regions.NewIndex(okayama)
	err := idx.Load(context.Background(), []regions.TierSpec{
		{Tier: regions.TierCity, Source: regions.HTTPSource{URL: srv.URL + "/empty.geojson"}},
		{Tier: regions.TierNeighborhood, Source: regions.HTTPSource{URL: srv.URL + "/chome.geojson"}},
	})
	if err == nil {
		t.Fatal("expected load error")
	}
	if !errors.Is(err, regions.ErrLoadFailed) {
		t.Errorf("expected ErrLoadFailed, got %v", err)
	}
	var le *regions.LoadError
	if !errors.As(err, &le) || le.Tier != regions.TierNeighborhood {
		t.Errorf("expected LoadError for neighborhood tier, got %v", err)
	}

	for _, st := range idx.Status() {
		switch st.Tier {
		case regions.TierCity:
			if st.Error != "" || st.Features != 0 {
				t.Errorf("city tier should be loaded and empty, got %+v", st)
			}
		case regions.TierNeighborhood:
			if st.Error == "" {
				t.Error("neighborhood tier should report its load error")
			}
		}
	}

	if _, ok := idx.Resolve(orb.Point{133.93, 34.66}); ok {
		t.Error("resolution with a failed tier should be unresolved")
	}
}

func TestLoad_InvalidDocument(t *testing.T) {
	idx := regions.NewIndex(okayama)
	err := idx.Load(context.Background(), []regions.TierSpec{
		{Tier: regions.TierWard, Source: writeFixture(t, []byte(`<html>not json</html>`))},
	})
	if !errors.Is(err, regions.ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
}

func TestLoad_SkipsMalformedFeature(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"CITY_NAME":"岡山市","S_NAME":"壊れ"},"geometry":{"type":"Polygon","coordinates":"abc"}},
		{"type":"Feature","properties":{"CITY_NAME":"岡山市","S_NAME":"大供"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}
	]}`)

	idx := regions.NewIndex(okayama)
	if err := idx.Load(context.Background(), []regions.TierSpec{{Tier: regions.TierNeighborhood, Source: writeFixture(t, data), NameField: "S_NAME"}}); err != nil {
		t.Fatalf("malformed feature should not fail the tier: %v", err)
	}
	got := idx.Features(regions.TierNeighborhood)
	if len(got) != 1 || got[0].Name != "大供" {
		t.Fatalf("expected only 大供 to be kept, got %+v", got)
	}
	if r, ok := idx.Resolve(orb.Point{0.5, 0.5}); !ok || r.Neighborhood != "大供" {
		t.Errorf("expected 大供, got %+v (%v)", r, ok)
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	idx := regions.NewIndex(okayama)
	idx.Install(regions.TierNeighborhood, "S_NAME", "", []regions.Feature{
		{Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}, Properties: map[string]string{"CITY_NAME": "岡山市", "S_NAME": "A"}},
		{Geometry: orb.Polygon{{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}}}, Properties: map[string]string{"CITY_NAME": "岡山市", "S_NAME": "B"}},
	})

	r, ok := idx.Resolve(orb.Point{1.5, 1.5})
	if !ok || r.Neighborhood != "A" {
		t.Errorf("expected first feature A in the overlap, got %+v", r)
	}
	r, ok = idx.Resolve(orb.Point{2.5, 2.5})
	if !ok || r.Neighborhood != "B" {
		t.Errorf("expected B outside the overlap, got %+v", r)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	idx := regions.NewIndex(okayama)
	idx.Install(regions.TierNeighborhood, "S_NAME", "", []regions.Feature{
		{Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}, Properties: map[string]string{"CITY_NAME": "岡山市", "S_NAME": "A"}},
	})

	r, ok := idx.Resolve(orb.Point{5, 5})
	if ok || !r.IsZero() {
		t.Errorf("expected unresolved, got %+v (%v)", r, ok)
	}
}

func TestResolve_OnlySearchesNeighborhoodTier(t *testing.T) {
	idx := regions.NewIndex(okayama)
	idx.Install(regions.TierCity, "N03_004", "", []regions.Feature{
		{Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}, Properties: map[string]string{"N03_004": "岡山市"}},
	})
	if _, ok := idx.Resolve(orb.Point{0.5, 0.5}); ok {
		t.Error("city tier must not be used for resolution")
	}
}

func TestResolve_RegionParts(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	tests := []struct {
		name  string
		props map[string]string
		want  regions.Region
	}{
		{
			name:  "explicit attributes",
			props: map[string]string{"CITY_NAME": "岡山市", "N03_005": "北区", "S_NAME": "大供"},
			want:  regions.Region{City: "岡山市", Ward: "北区", Neighborhood: "大供"},
		},
		{
			name:  "ward extracted from combined city name",
			props: map[string]string{"PREF_NAME": "岡山県", "CITY_NAME": "岡山市中区", "S_NAME": "東川原"},
			want:  regions.Region{City: "岡山市中区", Ward: "中区", Neighborhood: "東川原"},
		},
		{
			name:  "N03 fallbacks",
			props: map[string]string{"N03_004": "岡山市", "N03_005": "南区", "N03_006": "浦安町"},
			want:  regions.Region{City: "岡山市", Ward: "南区", Neighborhood: "浦安町"},
		},
		{
			name:  "city from N03_004 when CITY_NAME is blank",
			props: map[string]string{"PREF_NAME": "岡山県", "CITY_NAME": " ", "N03_004": "岡山市"},
			want:  regions.Region{City: "岡山市"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := regions.NewIndex(okayama)
			idx.Install(regions.TierNeighborhood, "S_NAME", "", []regions.Feature{{Geometry: square, Properties: tt.props}})
			got, ok := idx.Resolve(orb.Point{0.5, 0.5})
			if !ok {
				t.Fatal("expected resolution")
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve_LabelRoundTrip(t *testing.T) {
	idx := regions.NewIndex(okayama)
	idx.Install(regions.TierNeighborhood, "S_NAME", "", []regions.Feature{
		{Geometry: orb.Polygon{{{133.92, 34.66}, {133.93, 34.66}, {133.93, 34.67}, {133.92, 34.67}, {133.92, 34.66}}},
			Properties: map[string]string{"CITY_NAME": "岡山市", "N03_005": "北区", "S_NAME": "大供"}},
	})

	r, ok := idx.Resolve(orb.Point{133.925, 34.665})
	if !ok {
		t.Fatal("expected resolution")
	}
	if got := r.Label(); got != "岡山市 北区 大供" {
		t.Errorf("label = %q", got)
	}
}

func TestInstall_DisplayNames(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	idx := regions.NewIndex(regions.Municipality{})
	idx.Install(regions.TierNeighborhood, "S_NAME", "#66cc66", []regions.Feature{
		{Geometry: square, Properties: map[string]string{"S_NAME": " 大供 "}},
		{Geometry: square, Properties: map[string]string{"N03_005": "北区"}},
		{Geometry: square, Properties: map[string]string{"CITY_NAME": "岡山市北区"}},
		{Geometry: square, Properties: map[string]string{"PREF_NAME": "岡山県"}},
		{Geometry: square, Properties: map[string]string{"OTHER": "x"}},
	})

	want := []string{"大供", "北区", "岡山市北区", "岡山県", regions.UnnamedRegion}
	got := idx.Features(regions.TierNeighborhood)
	if len(got) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("feature %d: name = %q, want %q", i, got[i].Name, want[i])
		}
	}
}

func TestFeatureCollection(t *testing.T) {
	idx := regions.NewIndex(okayama)
	idx.Install(regions.TierWard, "N03_005", "#009966", []regions.Feature{
		{Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}, Properties: map[string]string{"N03_004": "岡山市", "N03_005": "北区"}},
	})

	fc := idx.FeatureCollection(regions.TierWard)
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	props := fc.Features[0].Properties
	if props["name"] != "北区" || props["tier"] != "ward" || props["color"] != "#009966" {
		t.Errorf("unexpected properties %v", props)
	}
	if props["label_lng"] != 1.0 || props["label_lat"] != 1.0 {
		t.Errorf("label anchor should be the centroid, got %v,%v", props["label_lng"], props["label_lat"])
	}
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]regions.Tier{"city": regions.TierCity, "ward": regions.TierWard, "neighborhood": regions.TierNeighborhood, "chome": regions.TierNeighborhood} {
		got, err := regions.ParseTier(in)
		if err != nil || got != want {
			t.Errorf("ParseTier(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := regions.ParseTier("prefecture"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestSpecsFromConfig(t *testing.T) {
	specs, err := regions.SpecsFromConfig([]config.TierConfig{
		{Tier: "city", Source: "https://example.jp/city.geojson", NameField: "N03_004", Color: "#0055cc"},
		{Tier: "chome", Source: "file://data/chome.geojson", NameField: "S_NAME", Color: "#66cc66"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := specs[0].Source.(regions.HTTPSource); !ok || specs[0].Tier != regions.TierCity {
		t.Errorf("unexpected first spec %+v", specs[0])
	}
	fs, ok := specs[1].Source.(regions.FileSource)
	if !ok || fs.Path != "data/chome.geojson" || specs[1].Tier != regions.TierNeighborhood {
		t.Errorf("unexpected second spec %+v", specs[1])
	}

	if _, err := regions.SpecsFromConfig([]config.TierConfig{{Tier: "prefecture"}}); err == nil {
		t.Error("expected error for unknown tier")
	}
}

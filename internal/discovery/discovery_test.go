package discovery

import (
	"testing"
	"time"

	"lunchly-backend/internal/models"
)

func partner(id string, distance float64, age *int, available bool) Partner {
	return Partner{
		User:     models.User{ID: id, IsAvailable: available, Age: age},
		Distance: distance,
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestFilterPartnersScenario(t *testing.T) {
	candidates := []Partner{
		partner("near", 1.2, intPtr(28), true),
		partner("far", 6.0, intPtr(30), true),
	}

	got := FilterPartners(candidates, PartnerFilter{MaxDistanceKM: 5, MinAge: 18, MaxAge: 65})
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestFilterPartnersBoundsAndOrder(t *testing.T) {
	candidates := []Partner{
		partner("edge-distance", 5.0, intPtr(40), true),
		partner("too-young", 1.0, intPtr(17), true),
		partner("min-age", 3.0, intPtr(18), true),
		partner("max-age", 0.5, intPtr(65), true),
		partner("too-old", 0.2, intPtr(66), true),
		partner("unavailable", 0.1, intPtr(30), false),
		partner("no-age", 0.3, nil, true),
	}
	f := PartnerFilter{MaxDistanceKM: 5, MinAge: 18, MaxAge: 65}

	got := FilterPartners(candidates, f)

	wantIDs := []string{"max-age", "min-age", "edge-distance"}
	if len(got) != len(wantIDs) {
		t.Fatalf("unexpected result size: got %d want %d (%+v)", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("unexpected order at %d: got %s want %s", i, got[i].ID, id)
		}
	}
	for _, p := range got {
		if p.Distance > f.MaxDistanceKM || *p.Age < f.MinAge || *p.Age > f.MaxAge {
			t.Fatalf("partner outside bounds: %+v", p)
		}
	}
}

func TestAnnotatePartnersSkipsUsersWithoutLocation(t *testing.T) {
	lat, lon := 51.1079, 17.0385
	users := []*models.User{
		{ID: "here", Lat: &lat, Lon: &lon},
		{ID: "half", Lat: &lat},
		{ID: "nowhere"},
		nil,
	}

	got := AnnotatePartners(models.Coordinate{Lat: lat, Lon: lon}, users)
	if len(got) != 1 || got[0].ID != "here" {
		t.Fatalf("unexpected annotated partners: %+v", got)
	}
	if got[0].Distance != 0 {
		t.Fatalf("unexpected distance: got %v want 0", got[0].Distance)
	}
}

func TestFixturePartnersScenario(t *testing.T) {
	got := FilterPartners(FixturePartners(time.Now()), PartnerFilter{MaxDistanceKM: 2, MinAge: 18, MaxAge: 65})
	if len(got) != 1 || got[0].ID != "mock1" {
		t.Fatalf("unexpected fixture filter result: %+v", got)
	}
}

func restaurant(id, name, address, cuisine string, rating *float64) models.Restaurant {
	return models.Restaurant{PlaceID: id, Name: name, Address: address, CuisineType: cuisine, Rating: rating}
}

func TestFilterRestaurantsByRating(t *testing.T) {
	list := []models.Restaurant{
		restaurant("a", "A", "", "restaurant", floatPtr(4.5)),
		restaurant("b", "B", "", "restaurant", floatPtr(3.9)),
		restaurant("c", "C", "", "restaurant", nil),
		restaurant("d", "D", "", "restaurant", floatPtr(4.0)),
	}

	got := FilterRestaurants(list, RestaurantFilter{MinRating: floatPtr(4.0)})
	if len(got) != 2 || got[0].PlaceID != "a" || got[1].PlaceID != "d" {
		t.Fatalf("unexpected rating filter result: %+v", got)
	}

	all := FilterRestaurants(list, RestaurantFilter{})
	if len(all) != len(list) {
		t.Fatalf("nil filter should keep everything: got %d", len(all))
	}
}

func TestMatchesDiet(t *testing.T) {
	tests := []struct {
		name string
		r    models.Restaurant
		diet Diet
		want bool
	}{
		{name: "vegan english", r: restaurant("1", "Vegan Spot", "", "", nil), diet: DietVegan, want: true},
		{name: "vegan polish", r: restaurant("2", "Wegańska Kuchnia", "", "", nil), diet: DietVegan, want: true},
		{name: "wege bistro", r: restaurant("3", "Wege Bistro", "", "", nil), diet: DietVegan, want: true},
		{name: "vegetarian", r: restaurant("4", "Vegetarian House", "", "", nil), diet: DietVegetarian, want: true},
		{name: "wegetarianska", r: restaurant("5", "Bar Wegetariański", "", "", nil), diet: DietVegetarian, want: true},
		{name: "gluten free", r: restaurant("6", "Gluten-Free Bakery", "", "", nil), diet: DietGlutenFree, want: true},
		{name: "bez glutenu address", r: restaurant("7", "Piekarnia", "ul. Bez Glutenu 3", "", nil), diet: DietGlutenFree, want: true},
		{name: "pizza is not vegan", r: restaurant("8", "Pizza Express", "ul. Przykładowa 10", "restaurant", nil), diet: DietVegan, want: false},
		{name: "bg inside word", r: restaurant("9", "Bgdan", "", "", nil), diet: DietGlutenFree, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesDiet(tt.r, tt.diet); got != tt.want {
				t.Fatalf("MatchesDiet: got %v want %v", got, tt.want)
			}
		})
	}
}

func TestFilterRestaurantsDietIsIdempotent(t *testing.T) {
	list := []models.Restaurant{
		restaurant("1", "Vegan Spot", "", "", floatPtr(4.1)),
		restaurant("2", "Burger House", "", "restaurant", floatPtr(4.2)),
		restaurant("3", "Wege Bistro", "", "cafe", nil),
	}
	diet := DietVegan
	f := RestaurantFilter{Diet: &diet}

	once := FilterRestaurants(list, f)
	twice := FilterRestaurants(once, f)
	if len(once) != 2 || len(twice) != len(once) {
		t.Fatalf("unexpected sizes: once %d twice %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].PlaceID != twice[i].PlaceID {
			t.Fatalf("filter not idempotent at %d: %s vs %s", i, once[i].PlaceID, twice[i].PlaceID)
		}
	}
}

func TestParseDiet(t *testing.T) {
	if d, err := ParseDiet(""); err != nil || d != nil {
		t.Fatalf("empty diet: got %v, %v", d, err)
	}
	d, err := ParseDiet(" Gluten_Free ")
	if err != nil || d == nil || *d != DietGlutenFree {
		t.Fatalf("gluten_free: got %v, %v", d, err)
	}
	if _, err := ParseDiet("paleo"); err == nil {
		t.Fatalf("expected error for unknown diet")
	}
}

func TestWindow(t *testing.T) {
	list := make([]int, 20)
	w := NewWindow()

	if got := len(Apply(w, list)); got != 8 {
		t.Fatalf("initial window: got %d want 8", got)
	}
	if !w.Grow(len(list)) || len(Apply(w, list)) != 13 {
		t.Fatalf("first grow: got %d want 13", len(Apply(w, list)))
	}
	w.Grow(len(list))
	w.Grow(len(list))
	if got := len(Apply(w, list)); got != 20 {
		t.Fatalf("window should clamp at total: got %d", got)
	}
	if w.Grow(len(list)) {
		t.Fatalf("grow beyond total should report no change")
	}

	short := make([]int, 3)
	if got := len(Apply(NewWindow(), short)); got != 3 {
		t.Fatalf("short list: got %d want 3", got)
	}

	w.Reset()
	if w.Size() != InitialWindow {
		t.Fatalf("reset: got %d", w.Size())
	}
	if WindowFor(2).Size() != InitialWindow || WindowFor(18).Size() != 18 {
		t.Fatalf("WindowFor clamps to initial size")
	}
}

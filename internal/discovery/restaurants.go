package discovery

import (
	"fmt"
	"regexp"
	"strings"

	"lunchly-backend/internal/models"
)

// Diet is a heuristic dietary category matched against free text
type Diet string

const (
	DietVegan      Diet = "vegan"
	DietVegetarian Diet = "vegetarian"
	DietGlutenFree Diet = "gluten_free"
)

// Polish and English spellings; false negatives are expected
var dietPatterns = map[Diet]*regexp.Regexp{
	DietVegan:      regexp.MustCompile(`vega|wege|wegań|vegan`),
	DietVegetarian: regexp.MustCompile(`weget|vegetar`),
	DietGlutenFree: regexp.MustCompile(`bez\s*glut|gluten[-\s]?free|bg\b`),
}

// ParseDiet validates a diet name; an empty string means no diet filter
func ParseDiet(s string) (*Diet, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	d := Diet(s)
	if _, ok := dietPatterns[d]; !ok {
		return nil, fmt.Errorf("unknown diet %q", s)
	}
	return &d, nil
}

// RestaurantFilter narrows a candidate list; nil fields disable a filter
type RestaurantFilter struct {
	MinRating *float64
	Diet      *Diet
}

// MatchesDiet reports whether r looks like it serves diet d
func MatchesDiet(r models.Restaurant, d Diet) bool {
	re, ok := dietPatterns[d]
	if !ok {
		return false
	}
	hay := strings.ToLower(strings.Join([]string{r.Name, r.Address, r.CuisineType}, " "))
	return re.MatchString(hay)
}

// FilterRestaurants applies the rating and diet filters, preserving input order.
// A missing rating counts as zero.
func FilterRestaurants(list []models.Restaurant, f RestaurantFilter) []models.Restaurant {
	out := make([]models.Restaurant, 0, len(list))
	for _, r := range list {
		if f.MinRating != nil {
			rating := 0.0
			if r.Rating != nil {
				rating = *r.Rating
			}
			if rating < *f.MinRating {
				continue
			}
		}
		if f.Diet != nil && !MatchesDiet(r, *f.Diet) {
			continue
		}
		out = append(out, r)
	}
	return out
}

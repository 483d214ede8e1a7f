// ABOUTME: Core data models for property listings and search results.
// ABOUTME: Provides the listing constructor that derives the searchable text.
package models

import "fmt"

// Listing represents one dataset row. A nil property field means the CSV cell was empty.
type Listing struct {
	Row              int // 0-based position in the dataset
	Property1        *string
	Property2        *string
	CombinedProperty string
}

// NewListing creates a listing and derives CombinedProperty, treating a nil field as empty text.
func NewListing(row int, property1, property2 *string) Listing {
	return Listing{
		Row:              row,
		Property1:        property1,
		Property2:        property2,
		CombinedProperty: valueOrEmpty(property1) + " " + valueOrEmpty(property2),
	}
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SearchResult pairs a listing with its cosine similarity to a query.
type SearchResult struct {
	Listing Listing
	Score   float64
}

// FormattedScore renders the score with 4 decimal digits.
func (r SearchResult) FormattedScore() string {
	return FormatScore(r.Score)
}

// FormatScore renders a similarity score with 4 decimal digits.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.4f", score)
}

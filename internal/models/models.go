package models

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Rating is a 1-5 review score that may be unparseable on the page.
// It serializes as a JSON number, or the string "unknown" when not set.
type Rating struct {
	value float64
	known bool
}

// NewRating returns a known rating value.
func NewRating(v float64) Rating {
	return Rating{value: v, known: true}
}

// UnknownRating returns the sentinel used when the page carries no parseable score.
func UnknownRating() Rating {
	return Rating{}
}

func (r Rating) Known() bool {
	return r.known
}

func (r Rating) Value() float64 {
	return r.value
}

func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.known {
		return json.Marshal("unknown")
	}
	return json.Marshal(r.value)
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*r = NewRating(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*r = NewRating(f)
		return nil
	}
	*r = UnknownRating()
	return nil
}

// Review holds one customer review attributed to a single place.
// Records are created once at extraction time and never mutated.
type Review struct {
	Key           string `json:"review_key"`
	OrgID         string `json:"org_id"`
	PlaceName     string `json:"place_name"`
	AuthorID      string `json:"author_id,omitempty"`
	AuthorCaption string `json:"author_caption,omitempty"`
	AuthorBadge   string `json:"author_badge,omitempty"`
	AuthorLevel   int    `json:"author_level,omitempty"`
	DateISO       string `json:"date_iso,omitempty"`
	Date          string `json:"date,omitempty"`
	RatingRaw     string `json:"rating_raw,omitempty"`
	Rating        Rating `json:"rating"`
	Text          string `json:"text"`
	SourceURL     string `json:"source_url"`
	ScrapedAt     int64  `json:"scraped_at_unix"`
}

// Fingerprint derives the dedup key for a review. Re-rendered copies of the
// same review after more content is revealed collapse to the same key.
func Fingerprint(orgID, authorID, dateISO, ratingRaw, text string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", orgID, authorID, dateISO, ratingRaw, text)))
	return hex.EncodeToString(sum[:])
}

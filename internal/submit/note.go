package submit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
)

var currencyFailureHints = []string{
	"not enabled",
	"not supported",
	"invalid",
	"not available",
	"not configured",
	"isn't available",
}

// NormalizeCountry uppercases a buyer country and maps UK to GB. Empty input is allowed.
func NormalizeCountry(raw string) (string, error) {
	country := strings.ToUpper(strings.TrimSpace(raw))
	if country == "" {
		return "", nil
	}
	if country == "UK" {
		country = "GB"
	}
	if len(country) != 2 || !isASCIILetters(country) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "countryCode must be a 2-letter ISO code").
			WithDetails(map[string]any{"countryCode": raw})
	}
	return country, nil
}

func isASCIILetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// currencyRejected reports whether a failure text reads like Shopify refusing the presentment currency.
func currencyRejected(text string) bool {
	text = strings.ToLower(text)
	if !strings.Contains(text, "currency") {
		return false
	}
	for _, hint := range currencyFailureHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}

type noteInput struct {
	Admin             bool
	WishlistID        uuid.UUID
	WishlistName      string
	SubmissionID      uuid.UUID
	Country           string
	RequestedCurrency string
	CustomerNote      string
}

// buildNote renders the draft order note. Empty lines are dropped.
func buildNote(in noteInput) string {
	lines := make([]string, 0, 6)
	if in.Admin {
		lines = append(lines, "Admin manual conversion.")
	}
	lines = append(lines,
		fmt.Sprintf("Wishlist: %s (%s)", in.WishlistID, in.WishlistName),
		fmt.Sprintf("Submission ID: %s", in.SubmissionID),
	)
	if in.Country != "" {
		lines = append(lines, "Country: "+in.Country)
	}
	if in.RequestedCurrency != "" {
		lines = append(lines, "Requested currency: "+in.RequestedCurrency)
	}
	if note := strings.TrimSpace(in.CustomerNote); note != "" {
		lines = append(lines, "Customer note: "+note)
	}
	return strings.Join(lines, "\n")
}

func withFallbackMarker(note, requested, fallback string) string {
	using := fallback
	if using == "" {
		using = "shop default"
	}
	return note + "\n" + fmt.Sprintf("Currency fallback: %s unavailable, using %s", requested, using)
}

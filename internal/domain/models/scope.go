package models

import (
	"regexp"
	"strings"
)

// ScopeDomestic is the nationwide scope.
const ScopeDomestic = "domestic"

const cityPrefix = "city/"

var cityID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// CityScope returns the scope of one city.
func CityScope(id string) string {
	return cityPrefix + id
}

// ValidScope reports whether s is the domestic scope or a well-formed city scope.
func ValidScope(s string) bool {
	if s == ScopeDomestic {
		return true
	}
	id, ok := strings.CutPrefix(s, cityPrefix)
	return ok && cityID.MatchString(id)
}

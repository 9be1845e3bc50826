package catalog

import "strings"

const (
	AudienceKids   = "Kids"
	AudienceAdults = "Adults"
)

// InferAudience derives the audience from a persona description.
func InferAudience(persona string) string {
	if strings.Contains(strings.ToLower(persona), "kid") {
		return AudienceKids
	}
	return AudienceAdults
}

package validators

import (
	"net/url"
	"strings"
)

// GenericValidator accepts any plausible http(s) media URL. The downloader
// delegates actual extraction to yt-dlp, which supports far more sites than
// we could enumerate, so this validator only rejects URLs that cannot
// possibly work. Register it last; platform validators take precedence.
type GenericValidator struct{}

func NewGenericValidator() *GenericValidator {
	return &GenericValidator{}
}

func (v *GenericValidator) SourceType() SourceType {
	return SourceGeneric
}

func (v *GenericValidator) CanHandle(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "":
		return parsed.Host != "" || parsed.Scheme == ""
	}
	return false
}

func (v *GenericValidator) Validate(rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceGeneric,
			URL:        rawURL,
			Error:      "invalid URL format",
		}
	}

	if parsed.Scheme == "" {
		// A scheme-less URL parses with the host folded into the path;
		// re-parse with https prepended.
		rawURL = "https://" + rawURL
		parsed, err = url.Parse(rawURL)
		if err != nil {
			return ValidationResult{
				Valid:      false,
				SourceType: SourceGeneric,
				URL:        rawURL,
				Error:      "invalid URL format",
			}
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceGeneric,
			URL:        rawURL,
			Error:      "invalid URL scheme",
		}
	}

	host := strings.ToLower(parsed.Host)
	if host == "" || !strings.Contains(host, ".") {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceGeneric,
			URL:        rawURL,
			Error:      "URL has no valid host",
		}
	}

	return ValidationResult{
		Valid:      true,
		SourceType: SourceGeneric,
		MediaType:  "media",
		URL:        rawURL,
	}
}

package logger

import (
	"net/url"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Notion file URLs are presigned S3 links; the query string is a credential.
var signedURLRegex = regexp.MustCompile(`https?://[^\s"']+[?&]X-Amz-Signature=[^\s"':]*`)

// RedactEmail masks the local part of an address, keeping two characters
// when there are more than two: "john.doe@example.com" → "jo***@example.com".
func RedactEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	local, host := email[:at], email[at+1:]
	if len(local) > 2 {
		return local[:2] + "***@" + host
	}
	return "***@" + host
}

// RedactURL drops the query string and fragment of a URL. Values that do not
// parse as absolute URLs are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.RawQuery == "" && u.Fragment == "" {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String() + "?redacted"
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "email"), strings.Contains(key, "recipient"):
		return RedactEmail(val)
	case key == "url" || strings.HasSuffix(key, "_url"):
		return RedactURL(val)
	}
	val = signedURLRegex.ReplaceAllStringFunc(val, RedactURL)
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

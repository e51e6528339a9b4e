// Package validation provides URL validation for the authorization flow
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError reports a value that failed validation
type ValidationError struct {
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q: %s", e.Value, e.Message)
}

// ValidateRedirectURI checks that a redirect URI is an absolute http(s) URL
// with a host, as required for registration with the provider.
func ValidateRedirectURI(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &ValidationError{Value: raw, Message: "redirect URI must not be empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Value: raw, Message: "redirect URI is not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Value: raw, Message: "redirect URI must use http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Value: raw, Message: "redirect URI must include a host"}
	}
	if u.Fragment != "" {
		return &ValidationError{Value: raw, Message: "redirect URI must not include a fragment"}
	}

	return nil
}

// ValidateReturnTarget checks that a post-login return target is a local
// path. Absolute URLs and scheme-relative forms are rejected so the callback
// can never be steered to another origin.
func ValidateReturnTarget(target string) error {
	if target == "" {
		return nil // Caller substitutes its default
	}
	if !strings.HasPrefix(target, "/") {
		return &ValidationError{Value: target, Message: "return target must be a local path"}
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return &ValidationError{Value: target, Message: "return target must not be scheme-relative"}
	}
	if strings.ContainsAny(target, "\r\n") {
		return &ValidationError{Value: target, Message: "return target must not contain control characters"}
	}
	if u, err := url.Parse(target); err != nil || u.Scheme != "" || u.Host != "" {
		return &ValidationError{Value: target, Message: "return target must not include a scheme or host"}
	}
	return nil
}

// NormalizeReturnTarget returns target when valid, or fallback otherwise
func NormalizeReturnTarget(target, fallback string) string {
	if err := ValidateReturnTarget(target); err != nil || target == "" {
		return fallback
	}
	return target
}

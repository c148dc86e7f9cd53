// Package redaction scrubs private material from outgoing log and chat text.
package redaction

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// sensitivePatterns are compiled once at package init and applied in layer 2.
// Life-log text is free-form, so the built-ins cover credentials and common
// personal identifiers that should never reach the backend.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sk_live_[a-zA-Z0-9]+`),                       // Stripe live keys
	regexp.MustCompile(`ghp_[a-zA-Z0-9]+`),                               // GitHub PATs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                               // AWS access key IDs
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+`),           // JWT tokens
	regexp.MustCompile(`(?i)password\s*[:=]\s*["']?\S+`),                 // password = ...
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                          // US SSNs
	regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),                         // card-like digit runs
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), // email addresses
}

// privateTagRe matches explicit <private>…</private> pairs (including multiline).
var privateTagRe = regexp.MustCompile(`(?s)<private>.*?</private>`)

const replacement = "[PRIVATE]"

// Scrub applies a three-layer pipeline to text:
//
//  1. Explicit <private>...</private> tags, replaced with [PRIVATE] until
//     no pairs remain; orphaned opening/closing tags are then stripped.
//  2. Built-in sensitive patterns (credentials, SSNs, card numbers, emails).
//  3. Caller-supplied extraPatterns (e.g. from LoadVibeIgnore).
func Scrub(text string, extraPatterns []*regexp.Regexp) string {
	// Layer 1: explicit tags, looped until stable.
	for {
		next := privateTagRe.ReplaceAllString(text, replacement)
		if next == text {
			break
		}
		text = next
	}
	// Strip any remaining orphaned tags.
	text = strings.ReplaceAll(text, "<private>", "")
	text = strings.ReplaceAll(text, "</private>", "")

	// Layer 2: built-in patterns.
	for _, re := range sensitivePatterns {
		text = re.ReplaceAllString(text, replacement)
	}

	// Layer 3: caller-supplied patterns.
	for _, re := range extraPatterns {
		text = re.ReplaceAllString(text, replacement)
	}

	return text
}

// LoadVibeIgnore reads a .vibeignore file and compiles each non-blank,
// non-comment line as a regular expression.
// Returns nil (no error) if the file does not exist.
func LoadVibeIgnore(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}

// Package id generates prefixed NanoID identifiers.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers this service mints.
const (
	PrefixBoard   = "board"
	PrefixItem    = "item"
	PrefixDraft   = "draft"
	PrefixSession = "sess"
	PrefixShare   = "shr"
	PrefixClient  = "sse"
	PrefixToken   = "tok"
)

// shareAlphabet drops look-alike characters so tokens survive being read aloud
// or retyped from a screenshot.
const shareAlphabet = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

const shareTokenLength = 16

// Generate returns "prefix-<nanoid>" using the default 21 character alphabet.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// ShareToken returns a public share token such as "shr-7kq2Mx9TbW4hZpRa".
func ShareToken() (string, error) {
	id, err := gonanoid.Generate(shareAlphabet, shareTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return PrefixShare + "-" + id, nil
}

// HasPrefix reports whether id was minted with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}

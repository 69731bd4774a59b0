package store

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// Id prefixes per row kind.
const (
	prefixMachine    = "mch"
	prefixAssembly   = "asm"
	prefixPart       = "prt"
	prefixItem       = "itm"
	prefixAttachment = "att"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newID returns prefix-<10 lowercase base32 chars> (50 random bits).
func newID(prefix string) (string, error) {
	var b [7]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	suffix := strings.ToLower(idEncoding.EncodeToString(b[:]))[:10]
	return prefix + "-" + suffix, nil
}

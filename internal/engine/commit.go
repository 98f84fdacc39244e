package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// ServerHash returns the published commitment for a server seed:
// lowercase hex SHA-256 of its ASCII bytes.
func ServerHash(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment reports whether serverSeed hashes to the published hash.
func VerifyCommitment(serverSeed, publishedHash string) bool {
	want := strings.ToLower(strings.TrimSpace(publishedHash))
	got := ServerHash(serverSeed)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// DigestBytes returns HMAC-SHA256(key=serverSeed, message).
func DigestBytes(serverSeed, message string) []byte {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	return h.Sum(nil)
}

// DigestHex returns the hex digest of the stain alone.
func DigestHex(serverSeed, stain string) string {
	return hex.EncodeToString(DigestBytes(serverSeed, stain))
}

// IndexedMessage appends the decimal index to the stain with no delimiter.
// "abc" and 12 produce "abc12"; changing this breaks every published round.
func IndexedMessage(stain string, index int) string {
	return stain + strconv.Itoa(index)
}

// IndexedDigestBytes returns HMAC-SHA256(serverSeed, stain+decimal(index)).
func IndexedDigestBytes(serverSeed, stain string, index int) []byte {
	return DigestBytes(serverSeed, IndexedMessage(stain, index))
}

// IndexedDigestHex is the hex form of IndexedDigestBytes.
func IndexedDigestHex(serverSeed, stain string, index int) string {
	return hex.EncodeToString(IndexedDigestBytes(serverSeed, stain, index))
}

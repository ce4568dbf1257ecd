// Package archive implements the sentinel-framed archive format: an ordered
// sequence of records, each a single header line followed immediately by the
// raw payload bytes. The header carries the entry name, payload size and
// SHA-256 checksum, so records can be located in the concatenated stream and
// verified after extraction.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

const (
	DefaultSentinel  = "--STARTFILE--"
	DefaultDelimiter = ":"
)

var (
	// ErrBadHeader reports a record header that cannot be parsed.
	ErrBadHeader = errors.New("malformed header")
	// ErrChecksum reports a payload whose SHA-256 does not match its header.
	ErrChecksum = errors.New("checksum mismatch")
)

// Options configures both halves of the codec. The zero value uses the
// default sentinel, delimiter and UTF-8 headers.
type Options struct {
	// Sentinel marks the start of every record. It must not occur inside
	// entry names.
	Sentinel string
	// Delimiter separates header fields. Names may contain it; the size and
	// checksum fields never do.
	Delimiter string
	// Encoding applies to header text only. Payload bytes are never decoded.
	// A nil Encoding means UTF-8. Non-ASCII-compatible encodings are not
	// supported: record framing relies on a literal newline byte.
	Encoding encoding.Encoding
}

func (o Options) withDefaults() Options {
	if o.Sentinel == "" {
		o.Sentinel = DefaultSentinel
	}
	if o.Delimiter == "" {
		o.Delimiter = DefaultDelimiter
	}
	return o
}

// marker returns the encoded record-boundary byte sequence, sentinel followed
// by delimiter.
func (o Options) marker() ([]byte, error) {
	return o.encodeText(o.Sentinel + o.Delimiter)
}

func (o Options) encodeText(s string) ([]byte, error) {
	if o.Encoding == nil {
		return []byte(s), nil
	}
	return o.Encoding.NewEncoder().Bytes([]byte(s))
}

func (o Options) decodeText(b []byte) (string, error) {
	if o.Encoding == nil {
		return string(b), nil
	}
	out, err := o.Encoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Entry declares one merge input: the name the payload will carry inside the
// archive and the source file it is read from. A slice of entries preserves
// the caller's ordering.
type Entry struct {
	Name   string
	Source string
}

// Record is the parsed header of one archive entry.
type Record struct {
	Name     string
	Size     int64
	Checksum string
}

// parseHeader splits a decoded header line into name, size and checksum.
// The split is anchored on the right so the name may itself contain the
// delimiter; only the last two delimited fields are taken as size and
// checksum. Surrounding whitespace is trimmed from the name.
func parseHeader(line, delimiter string) (Record, error) {
	i := strings.LastIndex(line, delimiter)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	j := strings.LastIndex(line[:i], delimiter)
	if j < 0 {
		return Record{}, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}

	name := strings.TrimSpace(line[:j])
	sizeStr := line[j+len(delimiter) : i]
	checksum := line[i+len(delimiter):]

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return Record{}, fmt.Errorf("%w: bad size %q in %q", ErrBadHeader, sizeStr, line)
	}

	return Record{Name: name, Size: size, Checksum: checksum}, nil
}

// ComputeSHA256 returns the hex-encoded SHA-256 digest of data.
func ComputeSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

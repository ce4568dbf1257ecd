package archive

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// MergeResult reports what a merge wrote and what it skipped.
type MergeResult struct {
	Written []Record
	Skipped []string // source paths that were not existing regular files
}

// Merge serializes each entry's source file into a new archive at
// archivePath, truncating any previous content. Entries whose source is not
// an existing regular file are skipped, not failed; callers wanting fail-fast
// behavior should assert existence before merging (the CLI does). Merging the
// same inputs twice produces byte-identical archives.
//
// A payload containing the sentinel+delimiter byte sequence would later be
// misread as a record boundary, so Merge rejects it instead of writing an
// archive that cannot be split back.
func Merge(opts Options, entries []Entry, archivePath string) (*MergeResult, error) {
	opts = opts.withDefaults()

	marker, err := opts.marker()
	if err != nil {
		return nil, fmt.Errorf("encoding sentinel: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	result, err := writeEntries(out, opts, entries, marker)
	if err != nil {
		out.Close()
		return nil, err
	}

	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return result, nil
}

func writeEntries(out *os.File, opts Options, entries []Entry, marker []byte) (*MergeResult, error) {
	result := &MergeResult{}

	for _, e := range entries {
		if err := validateName(opts, e.Name); err != nil {
			return nil, err
		}

		info, err := os.Stat(e.Source)
		if err != nil || !info.Mode().IsRegular() {
			result.Skipped = append(result.Skipped, e.Source)
			continue
		}

		data, err := os.ReadFile(e.Source)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Source, err)
		}
		if bytes.Contains(data, marker) {
			return nil, fmt.Errorf("payload of %s contains the record boundary %q", e.Name, opts.Sentinel+opts.Delimiter)
		}

		checksum := ComputeSHA256(data)
		header := fmt.Sprintf("%s%s%s%s%d%s%s\n",
			opts.Sentinel, opts.Delimiter, e.Name, opts.Delimiter, len(data), opts.Delimiter, checksum)
		encoded, err := opts.encodeText(header)
		if err != nil {
			return nil, fmt.Errorf("encoding header for %s: %w", e.Name, err)
		}

		if _, err := out.Write(encoded); err != nil {
			return nil, fmt.Errorf("writing header for %s: %w", e.Name, err)
		}
		if _, err := out.Write(data); err != nil {
			return nil, fmt.Errorf("writing payload for %s: %w", e.Name, err)
		}

		result.Written = append(result.Written, Record{
			Name:     e.Name,
			Size:     int64(len(data)),
			Checksum: checksum,
		})
	}

	return result, nil
}

// validateName rejects names the header format cannot represent. The
// delimiter is allowed in names because the parser splits from the right;
// newlines and the sentinel are not.
func validateName(opts Options, name string) error {
	if strings.ContainsAny(name, "\n\r") {
		return fmt.Errorf("entry name %q contains a line break", name)
	}
	if strings.Contains(name, opts.Sentinel) {
		return fmt.Errorf("entry name %q contains the sentinel %q", name, opts.Sentinel)
	}
	return nil
}

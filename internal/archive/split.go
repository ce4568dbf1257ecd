package archive

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Split reads the archive at archivePath and writes every entry out under
// outputDir, creating parent directories as needed and overwriting existing
// files. It returns a mapping from entry name to the path written for it.
//
// Any malformed header, unparsable size or checksum mismatch aborts the whole
// split. There is no rollback: entries extracted before the failing one
// remain on disk.
func Split(opts Options, archivePath, outputDir string) (map[string]string, error) {
	opts = opts.withDefaults()

	records, payloads, err := scanArchive(opts, archivePath)
	if err != nil {
		return nil, err
	}

	written := make(map[string]string, len(records))
	for i, rec := range records {
		if err := checkPayload(rec, payloads[i]); err != nil {
			return nil, err
		}

		dest := filepath.Join(outputDir, rec.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", rec.Name, err)
		}
		if err := os.WriteFile(dest, payloads[i], 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", rec.Name, err)
		}
		written[rec.Name] = dest
	}

	return written, nil
}

// scanArchive loads the whole archive and parses every record, returning the
// headers and the payload byte slices in archive order. Checksums are not
// verified here; callers decide whether verification interleaves with other
// work (Split validates just before writing each entry).
func scanArchive(opts Options, archivePath string) ([]Record, [][]byte, error) {
	marker, err := opts.marker()
	if err != nil {
		return nil, nil, fmt.Errorf("encoding sentinel: %w", err)
	}

	content, err := os.ReadFile(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive: %w", err)
	}

	// The chunk before the first sentinel carries no record. It is empty for
	// archives this package wrote.
	chunks := bytes.Split(content, marker)

	var records []Record
	var payloads [][]byte
	for _, chunk := range chunks[1:] {
		rec, payload, err := parseRecord(opts, chunk)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
		payloads = append(payloads, payload)
	}

	return records, payloads, nil
}

// parseRecord splits one boundary-delimited chunk into its header record and
// exactly Size payload bytes.
func parseRecord(opts Options, chunk []byte) (Record, []byte, error) {
	nl := bytes.IndexByte(chunk, '\n')
	if nl < 0 {
		return Record{}, nil, fmt.Errorf("%w: no newline after header in %q", ErrBadHeader, clip(chunk))
	}

	line, err := opts.decodeText(chunk[:nl])
	if err != nil {
		return Record{}, nil, fmt.Errorf("%w: undecodable header %q: %v", ErrBadHeader, chunk[:nl], err)
	}

	rec, err := parseHeader(line, opts.Delimiter)
	if err != nil {
		return Record{}, nil, err
	}

	body := chunk[nl+1:]
	if int64(len(body)) < rec.Size {
		return Record{}, nil, fmt.Errorf("payload for %s truncated: have %d bytes, header says %d", rec.Name, len(body), rec.Size)
	}

	return rec, body[:rec.Size], nil
}

func checkPayload(rec Record, payload []byte) error {
	actual := ComputeSHA256(payload)
	if actual != rec.Checksum {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksum, rec.Name, rec.Checksum, actual)
	}
	return nil
}

// clip bounds raw archive bytes quoted in error messages.
func clip(b []byte) []byte {
	const max = 64
	if len(b) > max {
		return b[:max]
	}
	return b
}

package archive

// List parses every record header in the archive without extracting or
// verifying anything.
func List(opts Options, archivePath string) ([]Record, error) {
	opts = opts.withDefaults()
	records, _, err := scanArchive(opts, archivePath)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Verify recomputes the checksum of every entry in the archive against its
// header, stopping at the first mismatch. Nothing is written to disk.
func Verify(opts Options, archivePath string) error {
	opts = opts.withDefaults()
	records, payloads, err := scanArchive(opts, archivePath)
	if err != nil {
		return err
	}
	for i, rec := range records {
		if err := checkPayload(rec, payloads[i]); err != nil {
			return err
		}
	}
	return nil
}

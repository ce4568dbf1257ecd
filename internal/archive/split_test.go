package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestSplitRoundTrip(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string][]byte{
		"plain.txt":      []byte("hello world"),
		"empty.txt":      {},
		"nested/bin.dat": {0x00, 0xff, 0x0a, 0x3a, 0x7f}, // includes newline and delimiter bytes
		"colons:in.txt":  []byte("the name has delimiters"),
	}
	names := []string{"plain.txt", "empty.txt", "nested/bin.dat", "colons:in.txt"}
	entries := writeSources(t, tempDir, files, names)

	archivePath := filepath.Join(tempDir, "merged.txt")
	if _, err := Merge(Options{}, entries, archivePath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	outDir := filepath.Join(tempDir, "out")
	written, err := Split(Options{}, archivePath, outDir)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(written) != len(files) {
		t.Fatalf("written count = %d, expected %d", len(written), len(files))
	}
	for name, want := range files {
		path, ok := written[name]
		if !ok {
			t.Errorf("entry %q missing from result mapping", name)
			continue
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", path, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s = %q, expected %q", name, got, want)
		}
	}
}

func TestSplitChecksumMismatch(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string][]byte{
		"first.txt":  []byte("first payload"),
		"second.txt": []byte("second payload"),
	}
	entries := writeSources(t, tempDir, files, []string{"first.txt", "second.txt"})

	archivePath := filepath.Join(tempDir, "merged.txt")
	if _, err := Merge(Options{}, entries, archivePath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// Flip the last payload byte of the archive; that byte belongs to the
	// second entry.
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	if err := os.WriteFile(archivePath, raw, 0644); err != nil {
		t.Fatalf("Failed to corrupt archive: %v", err)
	}

	outDir := filepath.Join(tempDir, "out")
	_, err = Split(Options{}, archivePath, outDir)
	if err == nil {
		t.Fatal("Split succeeded on a corrupted archive")
	}
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("error = %v, expected ErrChecksum", err)
	}
	if !strings.Contains(err.Error(), "second.txt") {
		t.Errorf("error %q does not name the corrupted entry", err)
	}

	// The failure hit entry two; entry one was already extracted and stays,
	// the corrupted entry must not be written.
	if _, err := os.Stat(filepath.Join(outDir, "first.txt")); err != nil {
		t.Errorf("first.txt missing after partial split: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "second.txt")); !os.IsNotExist(err) {
		t.Error("second.txt was written despite its checksum mismatch")
	}
}

func TestSplitMalformedArchives(t *testing.T) {
	tests := []struct {
		name    string
		archive string
	}{
		{"no newline after header", "--STARTFILE--:a.txt:5:" + helloSHA + "hello"},
		{"too few header fields", "--STARTFILE--:justname\nhello"},
		{"single header field", "--STARTFILE--:a.txt:5\nhello"},
		{"non-integer size", "--STARTFILE--:a.txt:five:" + helloSHA + "\nhello"},
		{"negative size", "--STARTFILE--:a.txt:-1:" + helloSHA + "\nhello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			archivePath := filepath.Join(tempDir, "bad.txt")
			if err := os.WriteFile(archivePath, []byte(tt.archive), 0644); err != nil {
				t.Fatalf("Failed to write archive: %v", err)
			}

			_, err := Split(Options{}, archivePath, filepath.Join(tempDir, "out"))
			if err == nil {
				t.Fatal("Split accepted a malformed archive")
			}
			if !errors.Is(err, ErrBadHeader) {
				t.Errorf("error = %v, expected ErrBadHeader", err)
			}
		})
	}
}

func TestSplitHandBuiltArchive(t *testing.T) {
	tempDir := t.TempDir()
	archivePath := filepath.Join(tempDir, "merged.txt")

	// Leading bytes before the first boundary are discarded, the name is
	// trimmed, and trailing bytes past the declared size are ignored.
	raw := "JUNK--STARTFILE--: a.txt :5:" + helloSHA + "\nhelloEXTRA IGNORED"
	if err := os.WriteFile(archivePath, []byte(raw), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}

	written, err := Split(Options{}, archivePath, filepath.Join(tempDir, "out"))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	path, ok := written["a.txt"]
	if !ok {
		t.Fatalf("written = %v, expected trimmed name a.txt", written)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("payload = %q, expected %q", got, "hello")
	}
}

func TestSplitTruncatedPayload(t *testing.T) {
	tempDir := t.TempDir()
	archivePath := filepath.Join(tempDir, "merged.txt")

	raw := "--STARTFILE--:a.txt:50:" + helloSHA + "\nhello"
	if err := os.WriteFile(archivePath, []byte(raw), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}

	if _, err := Split(Options{}, archivePath, filepath.Join(tempDir, "out")); err == nil {
		t.Fatal("Split accepted an archive shorter than its declared sizes")
	}
}

func TestSplitCustomTokens(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string][]byte{"doc.md": []byte("# custom tokens")}
	entries := writeSources(t, tempDir, files, []string{"doc.md"})

	opts := Options{Sentinel: "@@RECORD@@", Delimiter: "|"}
	archivePath := filepath.Join(tempDir, "merged.dat")
	if _, err := Merge(opts, entries, archivePath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("@@RECORD@@|doc.md|15|")) {
		t.Errorf("archive starts with %q, expected custom sentinel framing", raw[:30])
	}

	written, err := Split(opts, archivePath, filepath.Join(tempDir, "out"))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	got, err := os.ReadFile(written["doc.md"])
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !bytes.Equal(got, files["doc.md"]) {
		t.Errorf("payload = %q, expected %q", got, files["doc.md"])
	}
}

func TestSplitHeaderEncoding(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string][]byte{"café.txt": []byte("accented name")}
	entries := writeSources(t, tempDir, files, []string{"café.txt"})

	opts := Options{Encoding: charmap.ISO8859_1}
	archivePath := filepath.Join(tempDir, "merged.txt")
	if _, err := Merge(opts, entries, archivePath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// The header must hold the Latin-1 byte for é, not the UTF-8 pair.
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if !bytes.Contains(raw, []byte{'c', 'a', 'f', 0xe9}) {
		t.Error("header was not encoded as Latin-1")
	}

	written, err := Split(opts, archivePath, filepath.Join(tempDir, "out"))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if _, ok := written["café.txt"]; !ok {
		t.Errorf("written = %v, expected café.txt", written)
	}
}

func TestVerify(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("beta"),
	}
	entries := writeSources(t, tempDir, files, []string{"a.txt", "b.txt"})

	archivePath := filepath.Join(tempDir, "merged.txt")
	if _, err := Merge(Options{}, entries, archivePath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if err := Verify(Options{}, archivePath); err != nil {
		t.Errorf("Verify failed on an intact archive: %v", err)
	}

	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	if err := os.WriteFile(archivePath, raw, 0644); err != nil {
		t.Fatalf("Failed to corrupt archive: %v", err)
	}

	if err := Verify(Options{}, archivePath); !errors.Is(err, ErrChecksum) {
		t.Errorf("Verify error = %v, expected ErrChecksum", err)
	}
}

func TestList(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string][]byte{
		"a.txt":     []byte("hello"),
		"sub/b.bin": {1, 2, 3, 4},
	}
	entries := writeSources(t, tempDir, files, []string{"a.txt", "sub/b.bin"})

	archivePath := filepath.Join(tempDir, "merged.txt")
	if _, err := Merge(Options{}, entries, archivePath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	records, err := List(Options{}, archivePath)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, expected 2", len(records))
	}
	if records[0].Name != "a.txt" || records[0].Size != 5 || records[0].Checksum != helloSHA {
		t.Errorf("records[0] = %+v, expected a.txt/5/%s", records[0], helloSHA)
	}
	if records[1].Name != "sub/b.bin" || records[1].Size != 4 {
		t.Errorf("records[1] = %+v, expected sub/b.bin/4", records[1])
	}
}

package ustar

import (
	gotar "archive/tar"
	"bytes"
	"io"
	"strings"
	"testing"
)

// TestParserAgreesWithStdlibWriter feeds an archive written by the standard
// library's archive/tar through our Parser and checks that every header
// and every byte of content agrees, including a name long enough to force
// a PAX extended header.
func TestParserAgreesWithStdlibWriter(t *testing.T) {
	var buf bytes.Buffer
	tw := gotar.NewWriter(&buf)

	entries := []struct {
		name string
		body string
	}{
		{"short.txt", "hello"},
		{"dir/nested.txt", "nested content"},
		{strings.Repeat("x", 200) + "/long-name.txt", "long path content"},
	}
	for _, e := range entries {
		hdr := &gotar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Format: gotar.FormatUSTAR}
		if len(e.name) > 100 {
			hdr.Format = gotar.FormatPAX
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader(%q): %v", e.name, err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatalf("Write(%q): %v", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := map[string]string{}
	var p Parser
	wire := buf.Bytes()
	var curPath string
	var curData []byte
	for len(wire) >= BlockSize {
		block := wire[:BlockSize]
		wire = wire[BlockSize:]
		tok, ok, err := p.Write(block)
		if err != nil {
			t.Fatalf("Parser.Write: %v", err)
		}
		if !ok {
			continue
		}
		switch tok.Kind {
		case TokenHeader:
			if curPath != "" {
				got[curPath] = string(curData)
			}
			curPath, curData = tok.Header.Path, nil
		case TokenData:
			curData = append(curData, tok.Data...)
		case TokenEnd:
			if curPath != "" {
				got[curPath] = string(curData)
			}
			curPath = ""
		}
	}

	for _, e := range entries {
		if got[e.name] != e.body {
			t.Errorf("entry %q: got %q, want %q", e.name, got[e.name], e.body)
		}
	}
}

// TestStdlibAgreesWithGenerator writes an archive with our Generator and
// checks that the standard library's archive/tar.Reader decodes it
// identically, including a name long enough to force our PAX path.
func TestStdlibAgreesWithGenerator(t *testing.T) {
	entries := []struct {
		name string
		body string
	}{
		{"short.txt", "hello"},
		{"dir/nested.txt", "nested content"},
		{strings.Repeat("y", 300) + "/long-name.txt", "long path content"},
	}

	var g Generator
	for _, e := range entries {
		if err := g.File(e.name, FileStat{Size: int64(len(e.body)), Mode: 0o644}); err != nil {
			t.Fatalf("File(%q): %v", e.name, err)
		}
		if _, err := g.Write([]byte(e.body)); err != nil {
			t.Fatalf("Write(%q): %v", e.name, err)
		}
	}
	if err := g.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	var buf bytes.Buffer
	for {
		b, ok := g.Next()
		if !ok {
			break
		}
		buf.Write(b)
	}

	tr := gotar.NewReader(&buf)
	got := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tr.Next: %v", err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("ReadAll(%q): %v", hdr.Name, err)
		}
		got[hdr.Name] = string(body)
	}

	for _, e := range entries {
		if got[e.name] != e.body {
			t.Errorf("entry %q: got %q, want %q", e.name, got[e.name], e.body)
		}
	}
}

package importer

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBOMSkipper(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "file with BOM",
			input: append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			want:  "hello,world",
		},
		{
			name:  "file without BOM",
			input: []byte("hello,world"),
			want:  "hello,world",
		},
		{
			name:  "empty file",
			input: []byte{},
			want:  "",
		},
		{
			name:  "only BOM",
			input: []byte{0xEF, 0xBB, 0xBF},
			want:  "",
		},
		{
			name:  "shorter than BOM",
			input: []byte("ab"),
			want:  "ab",
		},
		{
			name:  "partial BOM preserved",
			input: []byte{0xEF, 0xBB, 'a', 'b'},
			want:  string([]byte{0xEF, 0xBB, 'a', 'b'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMSkipper(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "valid ascii",
			input: []byte("hello,world"),
			want:  "hello,world",
		},
		{
			name:  "valid multibyte",
			input: []byte("Würth,Elektronik"),
			want:  "Würth,Elektronik",
		},
		{
			name:  "invalid byte replaced",
			input: []byte{'h', 'e', 0x80, 'l', 'o'},
			want:  "he?lo",
		},
		{
			name:  "truncated sequence at end",
			input: []byte{'a', 'b', 0xC3},
			want:  "ab?",
		},
		{
			name:  "empty input",
			input: []byte{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8SanitizerLargeInput(t *testing.T) {
	// Multibyte runes crossing the internal chunk boundary must survive.
	input := strings.Repeat("ü", 5000)
	got, err := io.ReadAll(newUTF8Sanitizer(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != input {
		t.Errorf("round trip mangled input: got %d bytes, want %d", len(got), len(input))
	}
}

func TestWrapReader(t *testing.T) {
	t.Run("default utf-8 passthrough", func(t *testing.T) {
		r, err := wrapReader(strings.NewReader("a,b\n"), "")
		if err != nil {
			t.Fatal(err)
		}
		got, _ := io.ReadAll(r)
		if string(got) != "a,b\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("windows-1252 decodes", func(t *testing.T) {
		// 0x93/0x94 are curly quotes in cp1252 and invalid UTF-8.
		r, err := wrapReader(bytes.NewReader([]byte{0x93, 'h', 'i', 0x94}), "windows-1252")
		if err != nil {
			t.Fatal(err)
		}
		got, _ := io.ReadAll(r)
		if string(got) != "“hi”" {
			t.Errorf("got %q, want %q", got, "“hi”")
		}
	})

	t.Run("unknown encoding rejected", func(t *testing.T) {
		if _, err := wrapReader(strings.NewReader(""), "koi8-r"); err == nil {
			t.Error("expected error")
		}
	})
}

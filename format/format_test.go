package format_test

import (
	"bytes"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/amrox/zinc/format"
)

func TestAllowed(t *testing.T) {
	if !format.Allowed(format.Raw) || !format.Allowed(format.Gzip) {
		t.Errorf("raw and gzip should both be allowed")
	}
	if format.Allowed(format.Name("bogus")) {
		t.Errorf("unknown format should not be allowed")
	}
}

func TestExtension(t *testing.T) {
	if format.Extension(format.Raw) != "" {
		t.Errorf("raw should have no extension")
	}
	if format.Extension(format.Gzip) != "gz" {
		t.Errorf("gzip extension should be gz")
	}
}

func TestEncodeDecodeGzipRoundtrip(t *testing.T) {
	content := []byte(strings.Repeat("zinc zinc zinc ", 100))

	encoded, err := format.EncodeGzip(content)
	if err != nil {
		t.Fatalf("could not encode: %s", err)
	}
	if len(encoded) >= len(content) {
		t.Errorf("expected compression to reduce size for repetitive content")
	}

	r, err := format.DecodeGzip(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("could not decode: %s", err)
	}
	defer r.Close()

	decoded, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("could not read decoded content: %s", err)
	}
	if !bytes.Equal(decoded, content) {
		t.Errorf("roundtrip mismatch")
	}
}

func TestEncodeGzipDeterministic(t *testing.T) {
	content := []byte("deterministic content")

	a, err := format.EncodeGzip(content)
	if err != nil {
		t.Fatalf("could not encode: %s", err)
	}
	b, err := format.EncodeGzip(content)
	if err != nil {
		t.Fatalf("could not encode: %s", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("expected identical gzip output across runs for the same content")
	}
}

func TestWorthwhile(t *testing.T) {
	p := format.CompressIfSmaller
	if !p.Worthwhile(100, 99) {
		t.Errorf("any reduction should be worthwhile under CompressIfSmaller")
	}
	if p.Worthwhile(100, 100) {
		t.Errorf("equal size should not be worthwhile")
	}
	if p.Worthwhile(100, 101) {
		t.Errorf("larger gzip should never be worthwhile")
	}

	strict := format.Policy{MinRatio: 0.5}
	if strict.Worthwhile(100, 60) {
		t.Errorf("60%% of raw should not meet a 50%% ratio requirement")
	}
	if !strict.Worthwhile(100, 40) {
		t.Errorf("40%% of raw should meet a 50%% ratio requirement")
	}
}

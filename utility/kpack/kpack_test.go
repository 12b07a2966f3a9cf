// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kpack_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/devblok/lumen/utility/kpack"
)

var (
	testPayload1 = bytes.Repeat([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x01}, 128)
	testPayload2 = []byte("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb")
)

func buildTestArchive(t *testing.T) []byte {
	t.Helper()
	builder, err := kpack.NewBuilder(kpack.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("kernels/integrator_init.spv", testPayload1); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("kernels/film_convert.spv", testPayload2); err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer([]byte{})
	written, err := builder.WriteTo(buf)
	if err != nil {
		t.Fatal(err)
	}
	if written != int64(buf.Len()) {
		t.Errorf("WriteTo reported %d bytes, buffer has %d", written, buf.Len())
	}
	return buf.Bytes()
}

func TestCreateAndReadAll(t *testing.T) {
	raw := buildTestArchive(t)
	ar, err := kpack.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}

	got, err := ar.ReadAll("kernels/integrator_init.spv")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, testPayload1) {
		t.Error("first payload does not match up")
	}

	got, err = ar.ReadAll("kernels/film_convert.spv")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, testPayload2) {
		t.Error("second payload does not match up")
	}
}

func TestCreateAndStream(t *testing.T) {
	raw := buildTestArchive(t)
	ar, err := kpack.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.Open("kernels/film_convert.spv")
	if err != nil {
		t.Fatal(err)
	}
	if f.Size() != int64(len(testPayload2)) {
		t.Errorf("Size() = %d, want %d", f.Size(), len(testPayload2))
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, testPayload2) {
		t.Error("streamed payload does not match up")
	}
}

func TestIndex(t *testing.T) {
	raw := buildTestArchive(t)
	ar, err := kpack.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	index := ar.Index()
	if len(index) != 2 {
		t.Fatalf("index has %d entries, want 2", len(index))
	}
	if index[0].Name != "kernels/integrator_init.spv" {
		t.Errorf("unexpected first entry %q", index[0].Name)
	}
	if index[0].Size != int64(len(testPayload1)) {
		t.Errorf("first entry size %d, want %d", index[0].Size, len(testPayload1))
	}
}

func TestMissingEntry(t *testing.T) {
	raw := buildTestArchive(t)
	ar, err := kpack.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ar.ReadAll("kernels/missing.spv"); err != kpack.ErrNotFound {
		t.Errorf("ReadAll of absent entry returned %v, want ErrNotFound", err)
	}
	if _, err := ar.Open("kernels/missing.spv"); err != kpack.ErrNotFound {
		t.Errorf("Open of absent entry returned %v, want ErrNotFound", err)
	}
}

func TestNotAnArchive(t *testing.T) {
	if _, err := kpack.Open(bytes.NewReader([]byte("definitely not an archive"))); err != kpack.ErrFileFormat {
		t.Errorf("Open returned %v, want ErrFileFormat", err)
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	raw := buildTestArchive(t)
	// Flip a byte near the end, inside the last entry's payload.
	raw[len(raw)-3] ^= 0xff
	ar, err := kpack.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ar.ReadAll("kernels/film_convert.spv")
	if err == nil {
		t.Fatal("corrupted payload read back without error")
	}
}

// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kpack

import (
	"bytes"
	"testing"
	"time"
)

func TestAddAndWrite(t *testing.T) {
	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := builder.Add("test", []byte("idunvovkjnreovmegihjbrqlkmfrjnb")); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("test2", []byte("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb")); err != nil {
		t.Fatal(err)
	}

	if len(builder.files) != 2 {
		t.Error("incorrect number of files present")
	}

	buf := bytes.NewBuffer([]byte{})
	num, err := builder.WriteTo(buf)
	if err != nil {
		t.Fatal(err)
	}
	if num == 0 {
		t.Error("nothing written")
	}
	if len(builder.files) != 0 {
		t.Error("builder was not reset after WriteTo")
	}
}

func TestOffsetsArePacked(t *testing.T) {
	builder, err := NewBuilder(Header{Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	builder.Add("a", bytes.Repeat([]byte{1}, 512))
	builder.Add("b", bytes.Repeat([]byte{2}, 512))

	buf := bytes.NewBuffer([]byte{})
	if _, err := builder.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	ar, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	index := ar.Index()
	if index[0].Offset != 0 {
		t.Errorf("first entry offset %d, want 0", index[0].Offset)
	}
	if index[1].Offset != index[0].CompressedSize {
		t.Errorf("second entry offset %d, want %d", index[1].Offset, index[0].CompressedSize)
	}
}

// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kpack

import (
	"bytes"
	"crypto/md5"
	"io"

	"github.com/pierrec/lz4"
)

// Open opens the archive from r. It will also check if the file is
// actually a kpack archive, will return an error when it is not.
func Open(r io.ReaderAt) (*Archive, error) {
	magicBytes := make([]byte, MagicLength)
	if num, err := r.ReadAt(magicBytes, 0); err != nil {
		return nil, err
	} else if num < MagicLength || !bytes.Equal(magicBytes, magic[:]) {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, err
	} else if num < HeaderSizeNumberLength {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToInt64(headerSizeBytes)
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, err
	} else if int64(num) < headerSize {
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, ErrFileFormat
	}

	return &Archive{
		reader:    r,
		header:    header,
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
	}, nil
}

// Archive provides concurrent io for a kpack file, and can provide an
// io.Reader for each entry separately to perform actions on.
type Archive struct {
	reader    io.ReaderAt
	header    Header
	dataStart int64
}

// Index returns a copy of the archive index.
func (a *Archive) Index() []IndexEntry {
	index := make([]IndexEntry, len(a.header.Index))
	copy(index, a.header.Index)
	return index
}

func (a *Archive) find(name string) (IndexEntry, error) {
	for _, e := range a.header.Index {
		if e.Name == name {
			return e, nil
		}
	}
	return IndexEntry{}, ErrNotFound
}

// ReadAll returns the entire contents of an entry with a given name,
// decompressed and checksum-verified.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	entry, err := a.find(name)
	if err != nil {
		return nil, err
	}

	section := io.NewSectionReader(a.reader, a.dataStart+entry.Offset, entry.CompressedSize)
	data := make([]byte, entry.Size)
	if _, err := io.ReadFull(lz4.NewReader(section), data); err != nil {
		return nil, err
	}
	if md5.Sum(data) != entry.Checksum {
		return nil, ErrChecksum
	}
	return data, nil
}

// Open returns a Reader for an entry in the Archive. Unlike ReadAll it
// streams, so the checksum is not verified.
func (a *Archive) Open(name string) (*Reader, error) {
	entry, err := a.find(name)
	if err != nil {
		return nil, err
	}
	section := io.NewSectionReader(a.reader, a.dataStart+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:  entry,
		reader: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single entry in an Archive. Abstracts away
// the location that needs to be known.
type Reader struct {
	entry  IndexEntry
	reader io.Reader
}

// Read reads already decompressed data.
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.reader.Read(p)
}

// Size returns the uncompressed size of the entry.
func (r *Reader) Size() int64 {
	return r.entry.Size
}

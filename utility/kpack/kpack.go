// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kpack is an api for an lz4 backed kernel binary archive.
// Its purpose is to ship compiled compute kernels (SPIR-V payloads)
// alongside the binary and stream them out fast at device setup. The
// archive itself is not compressed in any form, rather every entry is
// individually compressed, so it can be read from its place and
// decompressed on the fly, concurrently. Every entry carries an MD5
// checksum of the uncompressed payload, verified on read, because a
// truncated kernel binary fails much later and much more confusingly
// inside the driver.
package kpack

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a kpack archive")
	ErrChecksum   = errors.New("entry payload does not match its checksum")
	ErrNotFound   = errors.New("no entry with that name in the archive")
	ErrTempFail   = errors.New("temporary folder or file operation failed")
)

// Sizes relevant to the header of the file.
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 16
)

var magic = [MagicLength]byte{'K', 'P', 'K', '\x00'}

// IndexEntry is info for one entry in the archive index. Offset is
// relative to the start of the data section, which begins right after
// the encoded header; that keeps the header size out of its own
// encoding.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
	Checksum       [md5.Size]byte
}

// Header is the archive header.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

func int64ToBinary(num int64) []byte {
	numBytes := make([]byte, HeaderSizeNumberLength)
	binary.PutVarint(numBytes, num)
	return numBytes
}

func binaryToInt64(bts []byte) (int64, error) {
	num, err := binary.ReadVarint(bytes.NewReader(bts))
	if err != nil {
		return 0, err
	}
	return num, nil
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewBuffer(bts)).Decode(obj)
}

package kv

import (
	"bytes"
	"encoding/gob"

	"github.com/DataDog/zstd"
)

// gob keeps float64 fields as float64, so length and risk values round trip bit for bit.
func encode[T any](v T) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode[T any](bb []byte) (T, error) {
	var v T
	dec := gob.NewDecoder(bytes.NewReader(bb))
	err := dec.Decode(&v)
	return v, err
}

func Compress(bb []byte) ([]byte, error) {
	var bbCompressed []byte
	bbCompressed, err := zstd.Compress(bbCompressed, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func Decompress(bbCompressed []byte) ([]byte, error) {
	var bb []byte
	bb, err := zstd.Decompress(bb, bbCompressed)
	if err != nil {
		return []byte{}, err
	}

	return bb, nil
}

func compressValue[T any](v T) ([]byte, error) {
	bb, err := encode(v)
	if err != nil {
		return nil, err
	}
	return Compress(bb)
}

func decompressValue[T any](bbCompressed []byte) (T, error) {
	bb, err := Decompress(bbCompressed)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](bb)
}

// Package codec moves quiz datasets and settlement records across the off-chain/on-chain
// boundary. An envelope is standard padded base64 of a zstd frame holding one JSON document.
//
// Encoding is canonical: struct field order fixes the JSON layout and the zstd encoder runs
// single-threaded at a fixed level, so Encode(Decode(x)) == x for every envelope Encode made.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"openquest-settlement/internal/domain"
)

// MaxDocumentSize bounds the decompressed JSON document.
const MaxDocumentSize = 64 << 20

var (
	b64     = base64.StdEncoding.Strict()
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic(fmt.Sprintf("codec: zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(MaxDocumentSize),
	)
	if err != nil {
		panic(fmt.Sprintf("codec: zstd decoder: %v", err))
	}
}

// seal compresses and text-encodes a JSON document.
func seal(doc []byte) []byte {
	compressed := encoder.EncodeAll(doc, make([]byte, 0, len(doc)/2))
	out := make([]byte, b64.EncodedLen(len(compressed)))
	b64.Encode(out, compressed)
	return out
}

// open reverses seal.
func open(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", domain.ErrDecode)
	}
	compressed := make([]byte, b64.DecodedLen(len(envelope)))
	n, err := b64.Decode(compressed, envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", domain.ErrDecode, err)
	}
	doc, err := decoder.DecodeAll(compressed[:n], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", domain.ErrDecode, err)
	}
	if len(doc) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrDecode, MaxDocumentSize)
	}
	return doc, nil
}

// decodeStrict unmarshals exactly one JSON value, rejecting unknown fields and trailing data.
func decodeStrict(doc []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after document", domain.ErrDecode)
	}
	return nil
}

// fields records the first required field found missing while converting a wire document.
type fields struct {
	missing string
}

func (f *fields) need(path string, present bool) {
	if !present && f.missing == "" {
		f.missing = path
	}
}

func (f *fields) err() error {
	if f.missing == "" {
		return nil
	}
	return fmt.Errorf("%w: missing field %s", domain.ErrDecode, f.missing)
}

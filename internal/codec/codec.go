// Package codec serializes the values crossing the scheduler/worker process
// boundary and the payloads kept in the task archive.
package codec

import (
	"io"
	"reflect"

	"github.com/bytedance/sonic"
	cbor "github.com/fxamacker/cbor/v2"
)

// Codec marshals single values.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Encoder writes a sequence of values to a stream.
type Encoder interface {
	Encode(v any) error
}

// Decoder reads a sequence of values from a stream.
type Decoder interface {
	Decode(v any) error
}

// StreamCodec is a Codec that can also frame values on a byte stream.
type StreamCodec interface {
	Codec
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec. Maps inside untyped values decode
// as map[string]any and integers as int64 so decoded payloads look like the
// values that were sent.
func CBOR() (StreamCodec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

// MustCBOR is CBOR for static initialization.
func MustCBOR() StreamCodec {
	c, err := CBOR()
	if err != nil {
		panic(err)
	}
	return c
}

func (c cborCodec) ContentType() string                { return "application/cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
func (c cborCodec) NewEncoder(w io.Writer) Encoder     { return c.enc.NewEncoder(w) }
func (c cborCodec) NewDecoder(r io.Reader) Decoder     { return c.dec.NewDecoder(r) }

type jsonCodec struct{}

// JSON returns a sonic-backed JSON codec.
func JSON() StreamCodec { return jsonCodec{} }

func (jsonCodec) ContentType() string                { return "application/json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return sonic.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return sonic.Unmarshal(data, v) }
func (jsonCodec) NewEncoder(w io.Writer) Encoder     { return sonic.ConfigDefault.NewEncoder(w) }
func (jsonCodec) NewDecoder(r io.Reader) Decoder     { return sonic.ConfigDefault.NewDecoder(r) }

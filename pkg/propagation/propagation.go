// Package propagation converts trace context to and from the header formats
// used to carry it across a network hop.
//
// Every codec is a pair of independent capabilities: a Marshaler builds the outbound
// header, an Unmarshaler decodes the inbound one. Decoding never panics; on any problem it
// returns the zero PropagationContext and an error, which callers treat as "start a fresh trace".
package propagation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyHeader        = errors.New("propagation: empty header")
	ErrUnsupportedVersion = errors.New("propagation: unsupported version")
	ErrMissingID          = errors.New("propagation: missing trace or parent id")
	ErrMalformedHeader    = errors.New("propagation: malformed header")
	ErrUnknownFormat      = errors.New("propagation: unknown format")
)

// PropagationContext is the neutral value exchanged between a trace and the wire codecs.
type PropagationContext struct {
	TraceID     string                 `json:"trace_id"`
	ParentID    string                 `json:"parent_id"`
	TraceFields map[string]interface{} `json:"trace_fields"`
	Dataset     string                 `json:"dataset"`
}

// IsValid reports whether both ids are present.
func (pc PropagationContext) IsValid() bool {
	return pc.TraceID != "" && pc.ParentID != ""
}

type Marshaler interface {
	Marshal(pc PropagationContext) string
}

type Unmarshaler interface {
	Unmarshal(header string) (PropagationContext, error)
}

// Codec is a Marshaler and Unmarshaler for the same wire format.
type Codec interface {
	Marshaler
	Unmarshaler
}

const (
	FormatHoneycomb        = "honeycomb"
	FormatHoneycombClassic = "honeycomb-classic"
	FormatHoneycombModern  = "honeycomb-modern"
	FormatW3C              = "w3c"
	FormatAWS              = "aws"
)

// Lookup returns the codec registered under name. "honeycomb" is the classic format.
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FormatHoneycomb, FormatHoneycombClassic:
		return HoneycombCodec{}, nil
	case FormatHoneycombModern:
		return HoneycombModernCodec{}, nil
	case FormatW3C:
		return W3CCodec{}, nil
	case FormatAWS:
		return AWSCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

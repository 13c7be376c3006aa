package propagation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

const honeycombVersion = "1"

// HoneycombCodec is the classic Honeycomb format, which routes by dataset:
//
//	1;dataset=<urlencoded>,trace_id=<id>,parent_id=<id>,context=<base64url(json(fields))>
type HoneycombCodec struct{}

func (HoneycombCodec) Marshal(pc PropagationContext) string {
	return marshalHoneycomb(pc, true)
}

func (HoneycombCodec) Unmarshal(header string) (PropagationContext, error) {
	return unmarshalHoneycomb(header, true)
}

// HoneycombModernCodec is the Honeycomb format without the dataset clause.
type HoneycombModernCodec struct{}

func (HoneycombModernCodec) Marshal(pc PropagationContext) string {
	return marshalHoneycomb(pc, false)
}

func (HoneycombModernCodec) Unmarshal(header string) (PropagationContext, error) {
	return unmarshalHoneycomb(header, false)
}

func marshalHoneycomb(pc PropagationContext, withDataset bool) string {
	var b strings.Builder
	b.WriteString(honeycombVersion)
	b.WriteString(";")
	if withDataset && pc.Dataset != "" {
		fmt.Fprintf(&b, "dataset=%s,", url.QueryEscape(pc.Dataset))
	}
	fmt.Fprintf(&b, "trace_id=%s,parent_id=%s,context=%s", pc.TraceID, pc.ParentID, encodeContext(pc.TraceFields))
	return b.String()
}

func unmarshalHoneycomb(header string, withDataset bool) (PropagationContext, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return PropagationContext{}, ErrEmptyHeader
	}
	version, payload, found := strings.Cut(header, ";")
	if !found {
		return PropagationContext{}, ErrMalformedHeader
	}
	if version != honeycombVersion {
		return PropagationContext{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}

	var pc PropagationContext
	for _, entry := range strings.Split(payload, ",") {
		key, value, found := strings.Cut(entry, "=")
		if !found || value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "trace_id":
			pc.TraceID = value
		case "parent_id":
			pc.ParentID = value
		case "dataset":
			if !withDataset {
				continue
			}
			dataset, err := url.QueryUnescape(value)
			if err != nil {
				logrus.WithError(err).Debug("Beeline couldn't decode dataset of trace header")
				continue
			}
			pc.Dataset = dataset
		case "context":
			pc.TraceFields = decodeContext(value)
		}
		// 未知的键忽略
	}
	if !pc.IsValid() {
		return PropagationContext{}, ErrMissingID
	}
	if pc.TraceFields == nil {
		pc.TraceFields = map[string]interface{}{}
	}
	return pc, nil
}

func encodeContext(fields map[string]interface{}) string {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		logrus.WithError(err).Warn("Beeline couldn't encode trace fields, propagating none")
		data = []byte("{}")
	}
	return base64.URLEncoding.EncodeToString(data)
}

// decodeContext accepts both base64 alphabets, with or without padding. Any decoding
// problem yields an empty field map.
func decodeContext(value string) map[string]interface{} {
	value = strings.TrimRight(strings.TrimSpace(value), "=")
	value = strings.NewReplacer("+", "-", "/", "_").Replace(value)
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		logrus.WithError(err).Debug("Beeline couldn't decode trace context")
		return map[string]interface{}{}
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(data, &fields); err != nil {
		logrus.WithError(err).Debug("Beeline couldn't parse trace context")
		return map[string]interface{}{}
	}
	if fields == nil {
		// "null"
		return map[string]interface{}{}
	}
	return fields
}

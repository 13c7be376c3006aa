package propagation

import (
	"fmt"
	"sort"
	"strings"
)

// AWSCodec is the X-Ray style format, semicolon separated key=value entries:
//
//	Root=<trace id>;Parent=<parent id>;Self=<parent id>;<key>=<value>...
//
// Keys are case-insensitive. Self wins over Parent wherever it appears, and a header with
// only a Root uses the root as its own parent.
type AWSCodec struct{}

// Marshal omits an empty Parent and the trace fields that cannot be carried: empty or
// reserved keys (root, parent, self) and keys or values containing a separator.
func (AWSCodec) Marshal(pc PropagationContext) string {
	entries := []string{"Root=" + pc.TraceID}
	if pc.ParentID != "" {
		entries = append(entries, "Parent="+pc.ParentID)
	}
	keys := make([]string, 0, len(pc.TraceFields))
	for k := range pc.TraceFields {
		if awsFieldKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := fmt.Sprintf("%v", pc.TraceFields[k])
		if strings.Contains(value, ";") {
			continue
		}
		entries = append(entries, k+"="+value)
	}
	return strings.Join(entries, ";")
}

func awsFieldKey(key string) bool {
	if key == "" || strings.ContainsAny(key, ";= ") {
		return false
	}
	switch strings.ToLower(key) {
	case "root", "parent", "self":
		return false
	}
	return true
}

func (AWSCodec) Unmarshal(header string) (PropagationContext, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return PropagationContext{}, ErrEmptyHeader
	}

	var pc PropagationContext
	var self, parent string
	fields := map[string]interface{}{}
	for _, entry := range strings.Split(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(entry), "=")
		if !found || key == "" {
			// "=true" 这类条目直接丢弃
			continue
		}
		switch strings.ToLower(key) {
		case "root":
			pc.TraceID = value
		case "self":
			self = value
		case "parent":
			parent = value
		default:
			fields[key] = value
		}
	}
	if pc.TraceID == "" {
		return PropagationContext{}, ErrMissingID
	}

	switch {
	case self != "":
		pc.ParentID = self
	case parent != "":
		pc.ParentID = parent
	default:
		pc.ParentID = pc.TraceID
	}
	if len(fields) > 0 {
		pc.TraceFields = fields
	}
	return pc, nil
}

package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	r "github.com/stretchr/testify/require"

	"github.com/stleox/beeline/pkg/config"
	"github.com/stleox/beeline/pkg/propagation"
)

func TestHeader_Decode(t *testing.T) {
	out, err := mockExecute("header", "decode", "--format", "aws", "Root=abc;Parent=def;color=red")
	r.NoError(t, err)

	var pc propagation.PropagationContext
	r.NoError(t, json.Unmarshal([]byte(out), &pc))
	r.Equal(t, "abc", pc.TraceID)
	r.Equal(t, "def", pc.ParentID)
	r.Equal(t, "red", pc.TraceFields["color"])
}

func TestHeader_DecodeInvalid(t *testing.T) {
	_, err := mockExecute("header", "decode", "2;trace_id=abc,parent_id=def")
	r.ErrorIs(t, err, propagation.ErrUnsupportedVersion)

	_, err = mockExecute("header", "decode", "--format", "b3", "x")
	r.ErrorIs(t, err, propagation.ErrUnknownFormat)
}

func TestHeader_Encode(t *testing.T) {
	out, err := mockExecute("header", "encode", "--trace-id", "abc", "--parent-id", "def", "--dataset", "orders")
	r.NoError(t, err)
	r.True(t, strings.HasPrefix(out, "1;dataset=orders,trace_id=abc,parent_id=def,context="))

	out, err = mockExecute("header", "encode", "--format", "aws", "--trace-id", "abc", "--parent-id", "def", "--field", "b=2", "--field", "a=1")
	r.NoError(t, err)
	r.Equal(t, "Root=abc;Parent=def;a=1;b=2\n", out)

	_, err = mockExecute("header", "encode", "--trace-id", "abc")
	r.Error(t, err)
}

func TestSample(t *testing.T) {
	out, err := mockExecute("sample", "--rate", "17", "this5", "hello", "world")
	r.NoError(t, err)
	r.Equal(t, "this5\ttrue\nhello\tfalse\nworld\tfalse\n", out)

	_, err = mockExecute("sample", "--rate", "0", "x")
	r.Error(t, err)
}

func TestEmit(t *testing.T) {
	out, err := mockExecute("emit", "--sink", "none", "--trace-header", "1;trace_id=abc,parent_id=def")
	r.NoError(t, err)
	r.True(t, strings.HasPrefix(out, "1;dataset="+config.DefaultDataset+",trace_id=abc,parent_id="))
}

func TestEmit_BadSink(t *testing.T) {
	_, err := mockExecute("emit", "--sink", "kafka")
	r.Error(t, err)
}

func mockExecute(args ...string) (string, error) {
	root := New(NewViper())
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.True(t, v.IsEmpty())
	assert.Equal(t, "null", v.Kind().String())
}

func TestValueAccessors(t *testing.T) {
	s, ok := StringValue("x").Str()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = StringValue("x").Num()
	assert.False(t, ok)

	n, ok := NumberValue(3).Num()
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	b, ok := BoolValue(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	items, ok := ArrayValue(StringValue("a")).Items()
	assert.True(t, ok)
	assert.Len(t, items, 1)

	fields, ok := ObjectValue(nil).Fields()
	assert.True(t, ok)
	assert.Empty(t, fields)
}

func TestValueJSON(t *testing.T) {
	in := `{"b":[1,"two",false,null],"a":{"x":1.5}}`

	var v Value
	require.NoError(t, json.Unmarshal([]byte(in), &v))
	assert.Equal(t, KindObject, v.Kind())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestValueFromAnyRejectsUnknown(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}

func TestValueEqual(t *testing.T) {
	a := ObjectValue(map[string]Value{"k": ArrayValue(NumberValue(1))})
	b := ObjectValue(map[string]Value{"k": ArrayValue(NumberValue(1))})
	c := ObjectValue(map[string]Value{"k": ArrayValue(NumberValue(2))})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, StringValue("1").Equal(NumberValue(1)))
	assert.True(t, NullValue().Equal(Value{}))
}

func TestValueAnyRoundTrip(t *testing.T) {
	v := ArrayValue(StringValue("a"), NumberValue(2), BoolValue(true), NullValue())
	back, err := FromAny(v.Any())
	require.NoError(t, err)
	assert.True(t, v.Equal(back))
}

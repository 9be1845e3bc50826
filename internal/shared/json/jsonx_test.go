package jsonx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIndentDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeIndent(&buf, map[string]string{"q": "Bath & Body <3"}))
	assert.Equal(t, "{\n  \"q\": \"Bath & Body <3\"\n}\n", buf.String())
}

func TestDecodeNumbersKeepsNumberLiterals(t *testing.T) {
	var out map[string]any
	require.NoError(t, DecodeNumbers([]byte(`{"price": 12.50, "count": 3}`), &out))

	price, ok := out["price"].(Number)
	require.True(t, ok)
	assert.Equal(t, "12.50", price.String())

	count, ok := out["count"].(Number)
	require.True(t, ok)
	n, err := count.Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

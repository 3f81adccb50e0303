package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	assert.Equal(t, 7, parseInt(" 7 ", 1))
	assert.Equal(t, -3, parseInt("-3", 1))
	assert.Equal(t, 1, parseInt("", 1))
	assert.Equal(t, 1, parseInt("ten", 1))
}

func TestSplitPath(t *testing.T) {
	id, rest := splitPath("/FF-1/history/export")
	assert.Equal(t, "FF-1", id)
	assert.Equal(t, "history/export", rest)

	id, rest = splitPath("FF-2/")
	assert.Equal(t, "FF-2", id)
	assert.Empty(t, rest)
}

func TestReadBodyJSON(t *testing.T) {
	var v struct {
		By string `json:"acknowledged_by"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"acknowledged_by":"IC"}`))
	require.NoError(t, readBodyJSON(r, 64, &v))
	assert.Equal(t, "IC", v.By)

	r = httptest.NewRequest("POST", "/", strings.NewReader("  \n"))
	require.NoError(t, readBodyJSON(r, 64, &v))
	assert.Equal(t, "IC", v.By)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"acknowledged_by":"`+strings.Repeat("x", 100)+`"}`))
	assert.ErrorContains(t, readBodyJSON(r, 64, &v), "exceeds 64 bytes")
}

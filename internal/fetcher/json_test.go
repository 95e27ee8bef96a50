package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCompany struct {
	CompanyID string `json:"companyId"`
}

func TestDecodeArray(t *testing.T) {
	input := `[{"companyId":"acme"},{"companyId":"globex","extra":1}]`

	got, err := DecodeArray[testCompany](context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acme", got[0].CompanyID)
	assert.Equal(t, "globex", got[1].CompanyID)
}

func TestDecodeArray_Empty(t *testing.T) {
	got, err := DecodeArray[testCompany](context.Background(), strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeArray_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "object", input: `{"a":1}`, want: "expected '['"},
		{name: "bad element", input: `[{"companyId":"a"},{"companyId":1}]`, want: "decode element 1"},
		{name: "empty body", input: ``, want: "read opening token"},
		{name: "truncated", input: `[{"companyId":"a"}`, want: "read closing token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeArray[testCompany](context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeArray_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DecodeArray[testCompany](ctx, strings.NewReader(`[{"companyId":"acme"}]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeObject(t *testing.T) {
	got, err := DecodeObject[testCompany](strings.NewReader(`{"companyId":"acme"}`))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.CompanyID)

	_, err = DecodeObject[testCompany](strings.NewReader(`{`))
	require.Error(t, err)
}

func TestDecodeObject_Null(t *testing.T) {
	got, err := DecodeObject[testCompany](strings.NewReader(`null`))
	require.NoError(t, err)
	assert.Nil(t, got)
}

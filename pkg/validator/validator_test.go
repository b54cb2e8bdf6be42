package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

type listing struct {
	Name  string `json:"name" validate:"required,max=10"`
	Price int64  `json:"price" validate:"gt=0"`
	Stock int64  `json:"stock" validate:"gte=0"`
	Kind  string `json:"kind,omitempty" validate:"omitempty,oneof=user company"`
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(listing{Name: "Phone", Price: 10, Stock: 0}))
}

func TestValidate_FieldMessages(t *testing.T) {
	err := Validate(listing{Name: "a very long name", Price: 0, Stock: -1, Kind: "admin"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "must be at most 10 characters", fields["name"])
	assert.Equal(t, "must be greater than 0", fields["price"])
	assert.Equal(t, "must be greater than or equal to 0", fields["stock"])
	assert.Equal(t, "must be one of: user company", fields["kind"])
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestValidate_ErrorString(t *testing.T) {
	err := Validate(listing{Price: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name' is required")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Phone","price":5,"stock":2}`, false},
		{"malformed json", `{"name":`, true},
		{"unknown field", `{"name":"Phone","price":5,"colour":"red"}`, true},
		{"trailing object", `{"name":"Phone","price":5}{"x":1}`, true},
		{"fails validation", `{"name":"","price":5}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst listing
			err := DecodeAndValidate(req, &dst)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Phone", dst.Name)
		})
	}
}

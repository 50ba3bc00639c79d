// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20}},
		{"?page=3&limit=10", Params{Page: 3, Limit: 10}},
		{"?page=0&limit=0", Params{Page: 1, Limit: 20}},
		{"?page=-2&limit=500", Params{Page: 1, Limit: 20}},
		{"?page=two&limit=ten", Params{Page: 1, Limit: 20}},
		{"?limit=100", Params{Page: 1, Limit: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/api/admin/users"+tt.query, nil)
			assert.Equal(t, tt.want, FromRequest(request))
		})
	}
}

func TestParams_Offset(t *testing.T) {
	assert.Equal(t, 0, Params{Page: 1, Limit: 20}.Offset())
	assert.Equal(t, 40, Params{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, 0, Params{Page: 0, Limit: 20}.Offset())
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, Meta{Page: 1, Limit: 20, Total: 41, TotalPages: 3}, NewMeta(1, 20, 41))
	assert.Equal(t, Meta{Page: 1, Limit: 20, Total: 0, TotalPages: 0}, NewMeta(1, 20, 0))
	assert.Zero(t, NewMeta(1, 0, 5).TotalPages)
}

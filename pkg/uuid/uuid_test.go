// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package uuid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/ecgscan/pkg/uuid"
)

func TestNew_IsVersion7(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	assert.True(t, uuid.Valid(first))
	assert.Equal(t, byte('7'), first[14])
	assert.NotEqual(t, first, second)
}

func TestValid(t *testing.T) {
	assert.True(t, uuid.Valid("0190a8f2-6c3e-7d41-b2a9-3f1e5c7d9a01"))
	assert.False(t, uuid.Valid(""))
	assert.False(t, uuid.Valid("not-a-uuid"))
	assert.False(t, uuid.Valid("urn:uuid:0190a8f2-6c3e-7d41-b2a9-3f1e5c7d9a01"))
}

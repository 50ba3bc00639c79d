// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ecgscan/internal/platform/ctxutil"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
)

func TestGetLogger_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), ctxutil.GetLogger(context.Background()))
	assert.Same(t, slog.Default(), ctxutil.GetLogger(ctxutil.WithLogger(context.Background(), nil)))
}

func TestGetLogger_CarriesRequestAttributes(t *testing.T) {
	var buffer bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buffer, nil))

	ctx := ctxutil.WithRequestID(context.Background(), "0190a8f2-6c3e-7d41-b2a9-3f1e5c7d9a01")
	ctx = ctxutil.WithLogger(ctx, base.With(slog.String("request_id", ctxutil.GetRequestID(ctx))))

	ctxutil.GetLogger(ctx).InfoContext(ctx, "password_reset_requested", slog.String("user_id", "u-1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "password_reset_requested", entry["msg"])
	assert.Equal(t, "0190a8f2-6c3e-7d41-b2a9-3f1e5c7d9a01", entry["request_id"])
	assert.Equal(t, "u-1", entry["user_id"])
}

func TestPrincipal(t *testing.T) {
	tests := []struct {
		name      string
		principal *sec.Principal
		isAdmin   bool
	}{
		{"clinician", &sec.Principal{UserID: "u-1", Email: "doctor@clinic.org", Role: sec.RoleUser}, false},
		{"admin", &sec.Principal{UserID: "u-2", Email: "ops@clinic.org", Role: sec.RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ctxutil.WithPrincipal(context.Background(), tt.principal)

			got := ctxutil.GetPrincipal(ctx)
			require.NotNil(t, got)
			assert.Equal(t, tt.principal.UserID, got.UserID)
			assert.Equal(t, tt.isAdmin, got.IsAdmin())
			assert.Equal(t, tt.isAdmin, got.Role.AtLeast(sec.RoleAdmin))
		})
	}
}

func TestGetPrincipal_AnonymousRequest(t *testing.T) {
	ctx := ctxutil.WithRequestID(context.Background(), "rid")

	assert.Nil(t, ctxutil.GetPrincipal(ctx))
	assert.Nil(t, ctxutil.GetPrincipal(ctxutil.WithPrincipal(ctx, nil)))
}

// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/ecgscan/internal/platform/apperr"
	"github.com/taibuivan/ecgscan/internal/platform/ctxutil"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/internal/platform/validate"
)

// maxBodyBytes caps JSON payloads; auth bodies are a few hundred bytes.
const maxBodyBytes = 64 << 10

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - writer: http.ResponseWriter (used to enforce the body size limit)
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	body := http.MaxBytesReader(writer, request.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Principal extracts the resolved caller from the request context.

Returns nil if the request is not authenticated.
*/
func Principal(request *http.Request) *sec.Principal {
	return ctxutil.GetPrincipal(request.Context())
}

/*
RequiredPrincipal ensures the request is authenticated and returns the caller.

Returns:
  - *sec.Principal: The authenticated caller
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredPrincipal(request *http.Request) (*sec.Principal, error) {
	principal := ctxutil.GetPrincipal(request.Context())
	if principal == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return principal, nil
}

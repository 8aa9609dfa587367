// Copyright (C) 2021 Toitware ApS.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; version
// 2.1 only.
//
// This library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// The license can be found in the file `LICENSE` in the top level
// directory of this repository.

package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy bounds a cloud backend request to 4 attempts with an
// exponential backoff starting at 250ms and capped at 4s, matching the
// reference tool's retry policy for transient network failures.
func retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// isTransient reports whether an HTTP status code or transport error
// should be retried: 5xx and 429, but never 4xx otherwise (those are Auth
// or Config failures and must not be retried).
func isTransient(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}

// withRetry runs op, retrying transient failures per retryPolicy. op
// should return a *backoff.PermanentError for failures that must not be
// retried (auth, not-found, integrity).
func withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, retryPolicy(ctx))
}

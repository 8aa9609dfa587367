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

package fetcher

import (
	"errors"
	"fmt"
)

// Category classifies an error for the purposes of retry and fatality
// decisions made by the orchestrators and backends.
type Category int

const (
	// CategoryConfig covers bad URLs, missing credentials, unreadable
	// lockfiles. Always fatal.
	CategoryConfig Category = iota
	// CategoryTransport covers network, HTTP and child-process I/O.
	// Retried with bounded backoff before being surfaced.
	CategoryTransport
	// CategoryAuth covers 401/403 and signature failures. Never retried.
	CategoryAuth
	// CategoryNotFound covers a missing blob. Benign for mirror (means
	// "needs fetching"), fatal per-krate for sync.
	CategoryNotFound
	// CategoryIntegrity covers checksum mismatches, truncated archives,
	// and missing git revisions. Per-krate fatal; partial output is
	// removed.
	CategoryIntegrity
	// CategoryLayout covers local filesystem preparation failures
	// (permissions, disk full). Always fatal.
	CategoryLayout
)

func (c Category) String() string {
	switch c {
	case CategoryConfig:
		return "config"
	case CategoryTransport:
		return "transport"
	case CategoryAuth:
		return "auth"
	case CategoryNotFound:
		return "not_found"
	case CategoryIntegrity:
		return "integrity"
	case CategoryLayout:
		return "layout"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Category so callers can decide
// whether to retry, abort the whole run, or just log and move on.
type Error struct {
	Category Category
	Krate    string // empty for component-level errors.
	Err      error
}

func (e *Error) Error() string {
	if e.Krate != "" {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Krate, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(cat Category, krate string, format string, a ...interface{}) *Error {
	return &Error{Category: cat, Krate: krate, Err: fmt.Errorf(format, a...)}
}

// Retryable reports whether an error's category is one the backend retry
// helper should attempt again.
func Retryable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Category == CategoryTransport
}

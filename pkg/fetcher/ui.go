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

import "fmt"

// UI lets this package report per-krate outcomes to the caller without
// aborting sibling work. A mirror or sync run reports many of these
// during a single invocation; none of them change the process exit code
// on their own.
type UI interface {
	// ReportError signals a per-krate or per-component error. Returns
	// ErrAlreadyReported.
	ReportError(format string, a ...interface{}) error

	// ReportWarning signals a non-fatal condition, such as a skipped
	// lockfile entry or a missing submodule.
	ReportWarning(format string, a ...interface{})

	// ReportInfo reports progress information.
	ReportInfo(format string, a ...interface{})
}

type fmtUI struct{}

func (fmtUI) ReportError(format string, a ...interface{}) error {
	fmt.Printf("error: "+format+"\n", a...)
	return ErrAlreadyReported
}

func (fmtUI) ReportWarning(format string, a ...interface{}) {
	fmt.Printf("warning: "+format+"\n", a...)
}

func (fmtUI) ReportInfo(format string, a ...interface{}) {
	fmt.Printf("info: "+format+"\n", a...)
}

type nullUI struct{}

func (nullUI) ReportError(format string, a ...interface{}) error {
	return ErrAlreadyReported
}

func (nullUI) ReportWarning(format string, a ...interface{}) {}
func (nullUI) ReportInfo(format string, a ...interface{})    {}

var (
	// ErrAlreadyReported marks an error whose message has already been
	// printed to the UI; callers can propagate it without printing again.
	ErrAlreadyReported = fmt.Errorf("fetch error")

	// FmtUI is a UI that prints through fmt, used by a Ctx with no UI set.
	FmtUI UI = fmtUI{}

	// NullUI discards everything, used by tests.
	NullUI UI = nullUI{}
)

// IsErrAlreadyReported reports whether err is ErrAlreadyReported.
func IsErrAlreadyReported(err error) bool {
	return err == ErrAlreadyReported
}

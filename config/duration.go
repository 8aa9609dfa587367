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

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses "<number>[s|m|h|d]", defaulting to days when no
// unit suffix is given, the convention --max-stale and --timeout use.
// time.ParseDuration is close but has neither a day unit nor a bare
// number default, so there's no way to reuse it directly here.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	unit := time.Hour * 24
	numeric := s
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
		numeric = s[:len(s)-1]
	case 'm':
		unit = time.Minute
		numeric = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		numeric = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		numeric = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n * float64(unit)), nil
}

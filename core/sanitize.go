//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 The TabPort Authors
//
// This file is part of TabPort.
//
// TabPort is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TabPort is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TabPort. If not, see https://www.gnu.org/licenses/.

package core

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidName is returned when an identifier sanitizes to the empty string.
var ErrInvalidName = errors.New("invalid identifier: empty after sanitization")

var unsafeIdentChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeName normalizes an arbitrary string into a safe store identifier:
// every character outside [A-Za-z0-9_] becomes "_", a leading digit gets a
// "_" prefix, and the result is lower-cased. An empty result returns
// ErrInvalidName.
//
// This is the single shared implementation applied to every table and column
// name before it reaches DDL or DML, so the identifiers used in CREATE TABLE
// and INSERT can never diverge.
func SanitizeName(name string) (string, error) {
	s := unsafeIdentChars.ReplaceAllString(name, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	if s == "" {
		return "", ErrInvalidName
	}
	return strings.ToLower(s), nil
}

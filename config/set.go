// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"reflect"
	"strings"

	"goki.dev/laser"
)

// SetValue sets a config field by dot-separated Go field path, e.g.
// "Model.NumBins" or "HotFilter.MaxRate", converting the value robustly
// to the field's type.  Used for command-line and experiment-tracking
// overrides on top of a loaded config.
func (cf *Config) SetValue(path string, val any) error {
	fld := reflect.ValueOf(cf).Elem()
	parts := strings.Split(path, ".")
	for i, nm := range parts {
		if fld.Kind() != reflect.Struct {
			return fmt.Errorf("config: %s is not a struct", strings.Join(parts[:i], "."))
		}
		fld = fld.FieldByName(nm)
		if !fld.IsValid() {
			return fmt.Errorf("config: no field named %q in path %q", nm, path)
		}
	}
	if !fld.CanAddr() {
		return fmt.Errorf("config: field %q is not settable", path)
	}
	if laser.SetRobust(fld.Addr().Interface(), val) != nil {
		return fmt.Errorf("config: could not set %q from value %v", path, val)
	}
	return nil
}

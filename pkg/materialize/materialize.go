// Copyright 2026 Confsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package materialize turns a namespace configuration snapshot into the byte
// content and filename written to disk. It is pure: same snapshot in, same
// bytes out.
package materialize

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// PropertiesExtension marks namespaces whose key/value map is written as a
// flat properties document.
const PropertiesExtension = ".properties"

// recognizedExtensions are the namespace suffixes the remote service treats
// as explicit file formats. Anything else gets the properties extension
// appended.
var recognizedExtensions = []string{
	PropertiesExtension,
	".xml",
	".json",
	".yml",
	".yaml",
	".txt",
}

// contentKey is the conventional key non-properties namespaces carry their
// entire payload under.
const contentKey = "content"

// CanonicalizeNamespace maps a namespace name to its on-disk filename.
// A recognized extension is preserved, anything else becomes a properties
// file. Extensions match case-sensitively, so "mirror.PROPERTIES" is a bare
// name and gains the lowercase suffix:
//
//	"application"            -> "application.properties"
//	"application.properties" -> "application.properties"
//	"feature.json"           -> "feature.json"
//	"mirror.PROPERTIES"      -> "mirror.PROPERTIES.properties"
func CanonicalizeNamespace(namespace string) string {
	for _, ext := range recognizedExtensions {
		if strings.HasSuffix(namespace, ext) {
			return namespace
		}
	}

	return namespace + PropertiesExtension
}

// Materialize converts a namespace snapshot into its target filename and
// file content.
//
// Namespaces materializing to a .properties filename are written as an
// INI-style document with one key = value line per entry, keys in sorted
// order so the output is deterministic. Any other suffix is treated as an
// opaque blob: the value of the "content" key is written verbatim, or an
// empty file if the key is absent.
func Materialize(namespace string, configurations map[string]string) (string, []byte, error) {
	filename := CanonicalizeNamespace(namespace)

	if !strings.HasSuffix(filename, PropertiesExtension) {
		return filename, []byte(configurations[contentKey]), nil
	}

	content, err := encodeProperties(configurations)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode namespace %s: %w", namespace, err)
	}

	return filename, content, nil
}

// encodeProperties writes the key/value map as a single unnamed INI section.
func encodeProperties(configurations map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(configurations))
	for key := range configurations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	file := ini.Empty()
	section := file.Section(ini.DefaultSection)

	for _, key := range keys {
		if _, err := section.NewKey(key, configurations[key]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Copyright (c) 2025, The Snail Authors.  All rights reserved.
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

// Package file parses the key/value and columnar text files the collectors
// probe: /etc/os-release, /proc tables, fstab and friends.
package file

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// maxFileSize bounds parsed files. Anything larger than 1MB is not a
// configuration file the collectors should be slurping.
const maxFileSize = 1 << 20

// Option configures a Parser.
type Option func(*Parser)

// WithKVDelimiter sets the key-value delimiter used by ParseMap. Default "=".
func WithKVDelimiter(delim string) Option {
	return func(p *Parser) {
		p.kvDelimiter = delim
	}
}

// WithTrimQuotes strips surrounding single or double quotes from values.
func WithTrimQuotes() Option {
	return func(p *Parser) {
		p.trimQuotes = true
	}
}

// WithKeepComments keeps lines starting with '#'. Default is to skip them.
func WithKeepComments() Option {
	return func(p *Parser) {
		p.keepComments = true
	}
}

// Parser parses small text configuration files.
type Parser struct {
	kvDelimiter  string
	trimQuotes   bool
	keepComments bool
}

// NewParser creates a parser with the provided options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		kvDelimiter: "=",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lines reads the file and returns its trimmed, non-empty lines.
// Comment lines are skipped unless WithKeepComments was set.
func (p *Parser) Lines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	if len(b) > maxFileSize {
		return nil, fmt.Errorf("file %q exceeds maximum size of %d bytes", path, maxFileSize)
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("content of file %q is not valid UTF-8", path)
	}
	return p.SplitLines(string(b)), nil
}

// SplitLines applies the parser's line rules to already-read content.
func (p *Parser) SplitLines(content string) []string {
	parts := strings.Split(content, "\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		line := strings.TrimSpace(part)
		if line == "" {
			continue
		}
		if !p.keepComments && strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ParseMap reads a key<delim>value file into a map. Lines without the
// delimiter are skipped.
func (p *Parser) ParseMap(path string) (map[string]string, error) {
	lines, err := p.Lines(path)
	if err != nil {
		return nil, err
	}
	return p.MapFromLines(lines), nil
}

// MapFromLines converts parsed lines into a key/value map.
func (p *Parser) MapFromLines(lines []string) map[string]string {
	result := make(map[string]string, len(lines))
	for _, line := range lines {
		kv := strings.SplitN(line, p.kvDelimiter, 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if p.trimQuotes {
			value = strings.Trim(value, `"'`)
		}
		if key == "" {
			continue
		}
		result[key] = value
	}
	return result
}

// Columns reads a whitespace-columned file (the /proc table shape) and
// returns the fields of each line. Lines with fewer than minFields are
// dropped.
func (p *Parser) Columns(path string, minFields int) ([][]string, error) {
	lines, err := p.Lines(path)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < minFields {
			continue
		}
		out = append(out, fields)
	}
	return out, nil
}

package configparser

/*
 * vplat - Platform configuration parser
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> ::= <model> *(<whitespace> <argument>)
 * <model> ::= <string>
 * <argument> ::= <value> | <option>
 * <option> ::= <string> '=' <value>
 * <value> ::= <string> | '"' *(<letter> | <whitespace>) '"'
 */

// Option is a key=value argument of a config line.
type Option struct {
	Name  string
	Value string
}

// CreateFunc builds one platform object from its config line.
type CreateFunc func(args []string, opts []Option) error

var models = map[string]CreateFunc{}

var lineNumber int

// RegisterModel should be called from init functions of the packages
// providing platform objects.
func RegisterModel(model string, fn CreateFunc) {
	models[strings.ToLower(model)] = fn
}

// Models lists the registered model names.
func Models() []string {
	var res []string
	for name := range models {
		res = append(res, name)
	}
	return res
}

// Reset drops all registered models. Test knob.
func Reset() {
	models = map[string]CreateFunc{}
}

// LoadConfigFile reads a platform configuration from a file.
func LoadConfigFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := LoadConfig(file); err != nil {
		return fmt.Errorf("%s:%w", path, err)
	}
	return nil
}

// LoadConfig reads a platform configuration. Each non-comment line
// names a model followed by its arguments.
func LoadConfig(rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	lineNumber = 0
	for scanner.Scan() {
		lineNumber++
		tokens, err := tokenize(scanner.Text())
		if err != nil {
			return fmt.Errorf("%d: %w", lineNumber, err)
		}
		if len(tokens) == 0 {
			continue
		}

		create, ok := models[strings.ToLower(tokens[0])]
		if !ok {
			return fmt.Errorf("%d: unknown model '%s'", lineNumber, tokens[0])
		}

		var args []string
		var opts []Option
		for _, tok := range tokens[1:] {
			if name, value, found := strings.Cut(tok, "="); found {
				opts = append(opts, Option{Name: strings.ToLower(name), Value: value})
			} else {
				args = append(args, tok)
			}
		}
		if err := create(args, opts); err != nil {
			return fmt.Errorf("%d: %w", lineNumber, err)
		}
	}
	return scanner.Err()
}

// tokenize splits one line on whitespace, honoring double quoted
// strings and stripping comments.
func tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inTok := false
	quoted := false

	flush := func() {
		if inTok {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inTok = false
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quoted:
			if c == '"' {
				quoted = false
			} else {
				cur.WriteByte(c)
			}
		case c == '"':
			quoted = true
			inTok = true
		case c == '#':
			flush()
			return tokens, nil
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
			inTok = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return tokens, nil
}

// ParseSize parses a number with an optional K, M or G suffix.
func ParseSize(s string) (uint64, error) {
	mult := uint64(1)
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		mult = 1024
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "G"), strings.HasSuffix(s, "g"):
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	val, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad size '%s'", s)
	}
	return val * mult, nil
}

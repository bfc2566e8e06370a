// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

const commandPrefix = "##vso["

// Command is a logging command written to the step output,
// for example ##vso[task.setvariable variable=Name]value
type Command struct {
	Name       string
	Properties map[string]string
	Value      string
}

// ParseCommand parses a logging command from a line of
// output. Leading text before the command prefix is ignored.
func ParseCommand(line string) (*Command, bool) {
	line = strings.TrimRight(line, "\r\n")
	i := strings.Index(line, commandPrefix)
	if i < 0 {
		return nil, false
	}
	line = line[i+len(commandPrefix):]
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return nil, false
	}
	head, value := line[:end], line[end+1:]

	name, props, _ := strings.Cut(head, " ")
	if name == "" {
		return nil, false
	}
	cmd := &Command{
		Name:       strings.ToLower(name),
		Properties: map[string]string{},
		Value:      unescape(value),
	}
	for _, prop := range strings.Split(props, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(prop), "=")
		if !ok || k == "" {
			continue
		}
		cmd.Properties[strings.ToLower(k)] = unescape(v)
	}
	return cmd, true
}

// Property returns the named property.
func (c *Command) Property(name string) string {
	return c.Properties[strings.ToLower(name)]
}

var unescaper = strings.NewReplacer(
	"%0D", "\r",
	"%0A", "\n",
	"%3B", ";",
	"%5D", "]",
	"%25", "%",
)

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	return unescaper.Replace(s)
}

// commandWriter is an io.Writer that scans the step output
// line by line for logging commands. Commands are passed to
// the handler and other lines are written to the base writer.
type commandWriter struct {
	mu      sync.Mutex
	w       io.Writer
	buf     []byte
	handler func(*Command) string
}

// newCommandWriter returns a commandWriter. The handler
// returns the text written in place of the command, if any.
func newCommandWriter(w io.Writer, handler func(*Command) string) *commandWriter {
	return &commandWriter{w: w, handler: handler}
}

func (c *commandWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = append(c.buf, p...)
	for {
		i := bytes.IndexByte(c.buf, '\n')
		if i < 0 {
			break
		}
		line := string(c.buf[:i+1])
		c.buf = c.buf[i+1:]
		if err := c.line(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (c *commandWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return nil
	}
	line := string(c.buf)
	c.buf = nil
	return c.line(line + "\n")
}

func (c *commandWriter) line(line string) error {
	if cmd, ok := ParseCommand(line); ok {
		if text := c.handler(cmd); text != "" {
			_, err := io.WriteString(c.w, text+"\n")
			return err
		}
		return nil
	}
	_, err := io.WriteString(c.w, line)
	return err
}

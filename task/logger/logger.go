// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type key struct{} // logger key

// L is the default logger entry.
var L = logrus.NewEntry(logrus.StandardLogger())

// WithContext returns a new context with the provided logger.
func WithContext(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// FromContext retrieves the current logger from the context.
func FromContext(ctx context.Context) *logrus.Entry {
	// if nil, return the default logger
	if ctx == nil {
		return L
	}
	v := ctx.Value(key{})
	// return the valid logger if returned
	if logger, ok := v.(*logrus.Entry); ok {
		return logger
	}
	// else return the default logger
	return L
}

// Configure sets the level and output format of the
// standard logger.
func Configure(verbose, json bool) {
	logrus.SetLevel(logrus.InfoLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package task

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/drone/go-teststeps/task/logger"
	"github.com/drone/go-teststeps/task/macro"
)

// A Handler handles task execution.
type Handler interface {
	Handle(context.Context, *Request) Response
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as task handlers.
type HandlerFunc func(context.Context, *Request) Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) Response {
	return f(ctx, req)
}

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Router routes task execution requests to the
// appropriate handler.
type Router struct {
	middleware []Middleware
	handlers   map[string]Handler
	notfound   Handler
}

func NewRouter() *Router {
	return &Router{
		handlers: map[string]Handler{},
	}
}

// Use adds the middleware onto the router stack.
func (h *Router) Use(fn Middleware) {
	h.middleware = append(h.middleware, fn)
}

// Register registers the Handler to the router. Task
// names are case-insensitive.
func (h *Router) Register(name string, handler Handler) {
	h.handlers[strings.ToLower(name)] = handler
}

// RegisterFunc registers the HandlerFunc to the router.
func (h *Router) RegisterFunc(name string, handler HandlerFunc) {
	h.Register(name, HandlerFunc(handler))
}

// NotFound adds a handler to response whenver a
// route cannot be found.
func (h *Router) NotFound(handler Handler) {
	h.notfound = handler
}

// NotFoundFunc adds a handler to response whenver a
// route cannot be found.
func (h *Router) NotFoundFunc(handler HandlerFunc) {
	h.NotFound(HandlerFunc(handler))
}

// Handle routes the task request to a handler.
func (h *Router) Handle(ctx context.Context, req *Request) Response {
	log := logger.FromContext(ctx).
		WithField("task.id", req.Task.ID).
		WithField("task.type", req.Task.Type)

	log.Debug("route task")

	// ensure all required variables are initialized.
	if req.Secrets == nil {
		req.Secrets = map[string]string{}
	}
	if req.Variables == nil {
		req.Variables = map[string]string{}
	}

	// add the structured logger to the context.
	ctx = logger.WithContext(ctx, log)

	// Discard task logs if a logger is not set.
	// A custom logger can be set by adding a middleware to the router.
	if req.Logger == nil {
		req.Logger = io.Discard
	}

	return h.handle(ctx, req)
}

// handle routes the task request to a handler.
func (h *Router) handle(ctx context.Context, req *Request) Response {
	// lookup the task handler
	handler, ok := h.handlers[strings.ToLower(req.Task.Type)]
	if !ok {
		// error if no route found
		if h.notfound == nil {
			return Errorf("handler not found: %s", req.Task.Type)
		}

		// else use the not found handler
		// to handle the task.
		handler = h.notfound
	}

	if bytes.Contains(req.Task.Data, []byte("$(")) {
		v := map[string]any{}

		// unmarshal the task inputs into a map
		err := json.Unmarshal(req.Task.Data, &v)
		if err != nil {
			return Error(err)
		}

		// expand the variable macros
		missing := macro.Expand(v, macro.Map(req.Variables))
		for _, name := range missing {
			logger.FromContext(ctx).
				WithField("variable", name).
				Warn("task input references an undefined variable")
		}

		// encode the map back to json
		req.Task.Data, err = json.Marshal(v)
		if err != nil {
			return Error(err)
		}
	}

	// execute the handler stack with middleware
	return chain(h.middleware, handler).Handle(ctx, req)
}

// chain builds a Handler composed of an inline
// middleware stack and endpoint handler in the
// order they are passed.
func chain(middleware []Middleware, handler Handler) Handler {
	// return ahead of time if there aren't any
	// middleware for the chain
	if len(middleware) == 0 {
		return handler
	}

	// wrap the end handler with the middleware chain
	h := middleware[len(middleware)-1](handler)
	for i := len(middleware) - 2; i >= 0; i-- {
		h = middleware[i](h)
	}

	return h
}

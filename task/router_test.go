// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var noContext = context.Background()

func TestRouter(t *testing.T) {
	router := NewRouter()
	router.RegisterFunc("Ping@1", func(_ context.Context, req *Request) Response {
		return Respond("pong")
	})
	router.NotFoundFunc(func(_ context.Context, req *Request) Response {
		t.Fail()
		return nil
	})

	res := router.Handle(noContext, &Request{
		Task: &Task{
			Type: "ping@1",
		},
	})

	got := res.Body()
	want := []byte("pong")
	if !bytes.Equal(got, want) {
		t.Errorf("Want response body %s, got %s", want, got)
	}
}

func TestRouterErr(t *testing.T) {
	router := NewRouter()
	router.RegisterFunc("ping", func(_ context.Context, req *Request) Response {
		return Errorf("ping error")
	})

	res := router.Handle(noContext, &Request{
		Task: &Task{
			Type: "ping",
		},
	})

	got := res.Error()
	want := "ping error"
	if got.Error() != want {
		t.Errorf("Want response error %s, got %s", want, got)
	}
}

func TestRouterErr_NotFound(t *testing.T) {
	router := NewRouter()

	res := router.Handle(noContext, &Request{
		Task: &Task{
			Type: "ping",
		},
	})

	got := res.Error()
	want := "handler not found: ping"
	if got.Error() != want {
		t.Errorf("Want response error %s, got %s", want, got)
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := NewRouter()
	router.NotFoundFunc(func(_ context.Context, req *Request) Response {
		return Errorf("custom not found error")
	})

	res := router.Handle(noContext, &Request{
		Task: &Task{
			Type: "ping",
		},
	})

	got := res.Error()
	want := "custom not found error"
	if got.Error() != want {
		t.Errorf("Want response error %s, got %s", want, got)
	}
}

func TestMiddleware(t *testing.T) {
	var visited1, visited2, visited3 bool
	r := NewRouter()
	r.Use(
		func(next Handler) Handler {
			return HandlerFunc(
				func(ctx context.Context, req *Request) Response {
					visited1 = true
					return next.Handle(ctx, req)
				},
			)
		},
	)
	r.Use(
		func(next Handler) Handler {
			return HandlerFunc(
				func(ctx context.Context, req *Request) Response {
					visited2 = true
					return next.Handle(ctx, req)
				},
			)
		},
	)
	r.RegisterFunc("test", func(_ context.Context, req *Request) Response {
		visited3 = true
		return nil
	})

	req := &Request{Task: &Task{Type: "test"}}

	if err := r.Handle(context.Background(), req); err != nil {
		t.Error(err)
	}
	if !visited1 {
		t.Errorf("Expect middleware[1] invoked")
	}
	if !visited2 {
		t.Errorf("Expect middleware[2] invoked")
	}
	if !visited3 {
		t.Errorf("Expect handler invoked")
	}
}

func TestMiddleware_Break(t *testing.T) {
	var visited bool
	r := NewRouter()
	r.Use(
		func(next Handler) Handler {
			return HandlerFunc(
				func(ctx context.Context, req *Request) Response {
					visited = true
					return nil // break chain
				},
			)
		},
	)
	r.Use(
		func(next Handler) Handler {
			return HandlerFunc(
				func(ctx context.Context, req *Request) Response {
					t.Fail()
					return next.Handle(ctx, req)
				},
			)
		},
	)
	r.RegisterFunc("test", func(_ context.Context, req *Request) Response {
		t.Fail()
		return nil
	})

	req := &Request{Task: &Task{Type: "test"}}

	if err := r.Handle(context.Background(), req); err != nil {
		t.Error(err)
	}

	if !visited {
		t.Fail()
	}
}

func TestMiddlewareErr(t *testing.T) {
	r := NewRouter()
	r.Use(
		func(next Handler) Handler {
			return HandlerFunc(
				func(_ context.Context, req *Request) Response {
					return Error(fmt.Errorf("test error"))
				},
			)
		},
	)
	r.RegisterFunc("test", func(_ context.Context, req *Request) Response {
		t.Fail()
		return nil
	})

	req := &Request{Task: &Task{Type: "test"}}

	if res := r.Handle(context.Background(), req); res.Error() == nil {
		t.Errorf("Expect middleware error")
	}
}

func TestRouter_ExpandMacros(t *testing.T) {
	var got map[string]string
	router := NewRouter()
	router.RegisterFunc("PublishTestResults@2", func(_ context.Context, req *Request) Response {
		if err := json.Unmarshal(req.Task.Data, &got); err != nil {
			return Error(err)
		}
		return Respond(nil)
	})

	data, _ := json.Marshal(map[string]string{
		"testRunTitle":     "sdk/foo Public $(Agent.JobName)",
		"testResultsFiles": "**/*test*.xml",
	})
	res := router.Handle(noContext, &Request{
		Task:      &Task{Type: "PublishTestResults@2", Data: data},
		Variables: map[string]string{"agent.jobname": "Linux_Python310"},
	})
	if err := res.Error(); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"testRunTitle":     "sdk/foo Public Linux_Python310",
		"testResultsFiles": "**/*test*.xml",
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Unexpected task inputs")
		t.Log(diff)
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"true", false, true},
		{" True ", false, true},
		{"false", true, false},
		{"", true, true},
		{"yes", false, false},
	}
	for _, test := range tests {
		if got := Bool(test.in, test.def); got != test.want {
			t.Errorf("Want Bool(%q, %v) = %v, got %v", test.in, test.def, test.want, got)
		}
	}
}

func TestRequest_Variable(t *testing.T) {
	req := &Request{Variables: map[string]string{
		"Agent.JobName":      "Linux_Python310",
		"System.TeamProject": "public",
		"system.teamproject": "internal",
	}}
	tests := map[string]string{
		"Agent.JobName":      "Linux_Python310",
		"agent.jobname":      "Linux_Python310",
		"SYSTEM.TEAMPROJECT": "internal",
		"System.TeamProject": "internal",
		"Missing":            "",
	}
	for i := 0; i < 20; i++ {
		for name, want := range tests {
			if got := req.Variable(name); got != want {
				t.Errorf("Want variable %s = %q, got %q", name, want, got)
			}
		}
	}
}

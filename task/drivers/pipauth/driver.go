// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipauth provides the driver that authenticates pip
// with package feeds.
package pipauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
)

// Name is the task name handled by the driver.
const Name = "PipAuthenticate@1"

// DefaultHost is the package feed host.
const DefaultHost = "pkgs.dev.azure.com"

// Config provides the task inputs.
type Config struct {
	ArtifactFeeds     string `json:"artifactFeeds"`
	OnlyAddExtraIndex string `json:"onlyAddExtraIndex"`
}

// New returns the task execution driver for feeds owned by
// the organization.
func New(host, organization string) task.Handler {
	if host == "" {
		host = DefaultHost
	}
	return &driver{host: host, organization: organization}
}

type driver struct {
	host         string
	organization string
}

// Handle handles the task execution request.
func (d *driver) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(Config)
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}
	if d.organization == "" {
		return task.Errorf("feed organization is not configured")
	}

	token := req.Variable("System.AccessToken")
	if token == "" {
		return task.Errorf("System.AccessToken is not set")
	}

	var urls []string
	for _, feed := range strings.Split(conf.ArtifactFeeds, ",") {
		feed = strings.TrimSpace(feed)
		if feed == "" {
			continue
		}
		u, err := d.index(feed, token)
		if err != nil {
			return task.Error(err)
		}
		urls = append(urls, u)
		log.WithField("feed", feed).Info("authenticated package feed")
	}
	if len(urls) == 0 {
		return task.Errorf("input artifactFeeds is required")
	}

	res := task.Respond(nil).(*task.Result)
	res.Secret("PipAuthenticate.AccessToken", token)
	if task.Bool(conf.OnlyAddExtraIndex, false) {
		return res.Output("PIP_EXTRA_INDEX_URL", strings.Join(urls, " "))
	}
	res.Output("PIP_INDEX_URL", urls[0])
	if len(urls) > 1 {
		res.Output("PIP_EXTRA_INDEX_URL", strings.Join(urls[1:], " "))
	}
	return res
}

// index returns the authenticated index url of the feed. A
// feed is either project/feed or an organization scoped feed.
func (d *driver) index(feed, token string) (string, error) {
	parts := strings.Split(feed, "/")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid feed name %q: expect project/feed or feed", feed)
	}
	path := []string{d.organization}
	if len(parts) == 2 {
		path = append(path, parts[0])
	}
	path = append(path, "_packaging", parts[len(parts)-1], "pypi", "simple")

	u := url.URL{
		Scheme: "https",
		User:   url.UserPassword("build", token),
		Host:   d.host,
		Path:   "/" + strings.Join(path, "/") + "/",
	}
	return u.String(), nil
}

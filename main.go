// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "github.com/drone/go-teststeps/cmd"

func main() {
	cmd.Execute()
}

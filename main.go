// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/speedup/asynchttp/cmd/asynchttp"

func main() {
	cmd.Execute()
}

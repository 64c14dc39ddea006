package main

import "github.com/gitpod-io/wheelcache/cmd"

func main() {
	cmd.Execute()
}

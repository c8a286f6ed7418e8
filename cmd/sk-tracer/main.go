package main

import "github.com/simkube-go/sk-tracer/cmd/sk-tracer/cmd"

func main() {
	cmd.Execute()
}

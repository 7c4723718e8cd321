package main

import "github.com/Taichi-iskw/ingest/cmd"

func main() {
	cmd.Execute()
}

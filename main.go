package main

import "github.com/kmazurek/forum-archiver/cmd"

func main() {
	cmd.Execute()
}

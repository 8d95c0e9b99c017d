package main

import (
	"os"

	"ticmd/app"
)

var version = "0.3.0"

func main() {
	os.Exit(app.Execute(version, os.Args[1:]))
}

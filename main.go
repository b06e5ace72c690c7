package main

import "fixtures/internal/app"

// version is set at build time with -ldflags.
var version = "dev"

func main() {
	app.Execute(version)
}

package main

import (
	"os"

	"github.com/bulltickr/aoprism-sub000/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}

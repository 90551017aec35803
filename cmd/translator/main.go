package main

import (
	"os"

	"horse.fit/translator/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}

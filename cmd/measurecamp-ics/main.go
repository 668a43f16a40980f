package main

import (
	"os"

	"github.com/pfrederiksen/measurecamp-ics/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

package main

import "github.com/saturnino-fabrica-de-software/photocap/internal/cli"

func main() {
	cli.Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/anef/pdfcp/internal/cli"
	"github.com/anef/pdfcp/internal/utils"
	log "github.com/sirupsen/logrus"
)

var version = "dev"

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		log.SetLevel(log.WarnLevel)
		return
	}
	logrusLevel, err := log.ParseLevel(level)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(logrusLevel)
}

func main() {
	app := cli.NewCLIApp(version, cli.DatabaseServiceFactory, &utils.SystemClock{})
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

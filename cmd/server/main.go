package main

import (
	"log"

	"github.com/webmitra3-cloud/webmitra.tech/app"
)

func main() {
	application, err := app.NewApp().WithAutoConfig().Build()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	application.Run()
}

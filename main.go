package main

import (
	"embed"
	"io/fs"
	"log"

	"media-toolkit/internal/bootstrap"
)

//go:embed frontend
var appAssets embed.FS

func main() {
	assets, err := fs.Sub(appAssets, "frontend")
	if err != nil {
		log.Fatalf("load frontend assets: %v", err)
	}

	app, err := bootstrap.NewWithAssets(assets)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}

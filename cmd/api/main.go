package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/meridian/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}

package main

import (
	"context"
	"os"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/app"
)

func main() {
	application := app.New()             // Initialize the application
	code := application.Run(os.Args[1:]) // Run the requested command
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	application.Stop(ctx) // Release resources before exiting
	cancel()
	os.Exit(code)
}

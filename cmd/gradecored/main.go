package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openlearn/gradecore/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		application.Log.Error("failed to start signal consumer", "error", err)
		os.Exit(1)
	}
	application.Log.Info("gradecored running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	application.Log.Info("shutting down")
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	srv := NewServer()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Shutting down")
		srv.Shutdown()
		os.Exit(0)
	}()

	srv.Run()
}

package main

import "github.com/medconnect/telemed/cmd/server"

func main() {
	s := server.NewServer()
	defer s.Shutdown()
	s.Run()
}

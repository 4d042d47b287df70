package main

import (
	"github.com/apex/log"
	"github.com/nextdhcp/nextlease/internal/cmd"
)

func main() {
	if err := cmd.Root.Execute(); err != nil {
		log.Fatal(err.Error())
	}
}

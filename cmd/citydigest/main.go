package main

import (
	"citydigest/cmd/handlers"
	"citydigest/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}

// Command ultron is a terminal client for the Ultron scheduling assistant.
package main

import (
	"github.com/joho/godotenv"

	"github.com/ultronhq/ultron/internal/commands"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	commands.Execute()
}

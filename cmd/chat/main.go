// Command chat is a terminal client for a running ragchat server.
package main

import (
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragchat/internal/client"
	"ragchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var serverURL string
	var timeoutSecs int
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the ragchat server")
	flag.IntVar(&timeoutSecs, "timeout", 120, "Request timeout in seconds")
	flag.Parse()

	c := client.New(serverURL, time.Duration(timeoutSecs)*time.Second)
	m := tui.New(c)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"tensorq/config"
)

const configPath = "qsim.yaml"

func main() {
	s, err := config.Load(configPath)
	if err == nil {
		if err := config.Set(s); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Engine logs go to stderr; only useful when the program runs with
	// stderr redirected away from the TUI.
	if os.Getenv("QSIM_DEBUG") != "" {
		if err := config.UseDevelopmentLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

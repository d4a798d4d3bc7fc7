package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/vidra-cli/vidra/color"
	"github.com/vidra-cli/vidra/icon"
	"github.com/vidra-cli/vidra/style"
)

// CheckDependencies exits when mpv is not on PATH.
func CheckDependencies() {
	if _, err := exec.LookPath("mpv"); err != nil {
		fmt.Println(missingDependency("mpv", runtime.GOOS))
		os.Exit(1)
	}
}

func installHint(goos string) string {
	switch goos {
	case "darwin":
		return "brew install mpv"
	case "linux":
		return "sudo apt install mpv"
	case "windows":
		return "scoop install mpv"
	default:
		return ""
	}
}

func missingDependency(dep, goos string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color.HiRed).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(color.HiRed).Render(fmt.Sprintf("%s Error: Missing Dependency", icon.Get(icon.Fail)))
	body := style.New().Foreground(color.White).Render(fmt.Sprintf("The required dependency '%s' was not found in your PATH.", dep))

	var suggestion string
	if hint := installHint(goos); hint != "" {
		suggestion = fmt.Sprintf("\n\nTo install it, try running:\n  %s", style.New().Foreground(color.Accent).Bold(true).Render(hint))
	}

	return box.Render(lipgloss.JoinVertical(lipgloss.Left, title, "\n", body, suggestion))
}

// Package ui holds the operator-facing console helpers: the startup banner
// and a small family of colored print functions, ported from the teacher's
// utils_ui.go. These never carry chain logic — they are purely cosmetic,
// separate from the structured logging in internal/logging.
package ui

import (
	"github.com/fatih/color"
)

func PrintSuccess(format string, a ...interface{}) {
	color.Green("✅ "+format, a...)
}

func PrintError(format string, a ...interface{}) {
	color.Red("⛔ "+format, a...)
}

func PrintInfo(format string, a ...interface{}) {
	color.Cyan("ℹ️  "+format, a...)
}

func PrintWarning(format string, a ...interface{}) {
	color.Yellow("⚠️  "+format, a...)
}

func PrintMiner(format string, a ...interface{}) {
	c := color.New(color.FgYellow, color.Bold)
	c.Printf("⛏️  "+format+"\n", a...)
}

func PrintNetwork(format string, a ...interface{}) {
	c := color.New(color.FgBlue)
	c.Printf("🌐 "+format+"\n", a...)
}

// Banner prints the startup banner for the node binary.
func Banner(version string) {
	color.Green(`
   _____  ____  _      ______ _________  _____ _____
  / ____|/ __ \| |    |  ____|  _   _  | / ____|  ___|
 | (___ | |  | | |    | |__   | |_|_| | | |    | |__
  \___ \| |  | | |    |  __|  |  _____| | |    |  __|
  ____) | |__| | |____| |____ | |       | |____| |
 |_____/ \____/|______|______||_|        \_____|_|
`)
	color.New(color.Bold).Printf("   SOLECHAIN node %s\n", version)
	color.Cyan("   educational account-model proof-of-work chain\n")
}

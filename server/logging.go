package server

import (
	"log"

	"github.com/fatih/color"
)

// logRequest logs a served request with color-coded status
func logRequest(command, line, status string) {
	switch status {
	case statusOK:
		log.Print(color.GreenString("%s %q %s", command, line, status))
	case statusNotFound, statusBadRequest:
		log.Print(color.RedString("%s %q %s", command, line, status))
	default:
		log.Print(color.YellowString("%s %q %s", command, line, status))
	}
}

package main

import (
	"gymops-backend/cmd/gymops-cli/commands"
	"gymops-backend/lib/util/serviceutil"
)

func main() {
	commands.Execute(serviceutil.SignalContext())
}

// Package main is the entry point for the device monitor.
package main

import "device-monitor/cmd/monitor/cmd"

func main() {
	cmd.Execute()
}

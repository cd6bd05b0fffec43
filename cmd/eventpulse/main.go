package main

import "event-analytics/internal/cli"

func main() {
	cli.Execute()
}

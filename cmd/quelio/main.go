/*
main.go - Application entry point

PURPOSE:
  Starts the quelio command line. All commands live in the cli package.

EXAMPLES:
  # Write a config, then run the server
  quelio config init quelio.json
  quelio serve --config quelio.json --port 8080

  # Compute a report from a saved punch file
  quelio compute punches.json

SEE ALSO:
  - cli/root.go: command tree
*/
package main

import "github.com/quelio/engine/cli"

func main() {
	cli.Execute()
}

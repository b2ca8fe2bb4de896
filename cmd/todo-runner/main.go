// Command todo-runner runs end-to-end scenarios against a to-do web application.
package main

import "github.com/devicelab-dev/todo-runner/pkg/cli"

func main() {
	cli.Execute()
}

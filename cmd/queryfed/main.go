// Package main is the entry point for the queryfed service: a federated
// natural-language query engine over multiple databases and a document
// index.
package main

import "github.com/queryfed/queryfed/cmd/queryfed/cmd"

func main() {
	cmd.Execute()
}

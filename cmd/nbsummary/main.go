// Package main provides the entry point for the nbsummary CLI.
//
// nbsummary executes the analysis notebooks of datascienceapps, renders them
// to HTML for the site and publishes a machine-readable summary of each one.
//
// Usage:
//
//	nbsummary run [folder | notebook.ipynb]
//	nbsummary compare <project/notebook>
//
// See --help for all available options.
package main

func main() {
	Execute()
}

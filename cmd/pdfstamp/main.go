// Command pdfstamp places signature stamps on PDF documents.
package main

import "github.com/digitorus/pdfstamp/cli"

func main() {
	cli.Main()
}

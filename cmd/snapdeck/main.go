// Package main provides the snapdeck command.
//
// Snapdeck screenshots web pages in headless Chrome and compiles the labeled
// screenshots into a single PDF.
//
// Usage:
//
//	snapdeck --url https://example.com
//	snapdeck --subdomains example.com
//	snapdeck --urlfile urls.txt
package main

import "github.com/joho/godotenv"

func main() {
	// .env is optional
	_ = godotenv.Load()

	Execute()
}

package main

import "github.com/malscan/malscan/cmd/malscan"

func main() {
	malscan.Execute()
}

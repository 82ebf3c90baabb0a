/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/cmd"

func main() {
	cmd.Execute()
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/taskhub/accounts/cmd"

func main() {
	cmd.Execute()
}

package main

import "jenkinslog/logsplit/cmd"

func main() {
	cmd.Execute()
}

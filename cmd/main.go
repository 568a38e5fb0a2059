package main

import (
	"fmt"
	"os"

	"NaslParser/pkg/cli"
)

func main() {
	parser := cli.NewParser()
	if err := parser.Parse(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "使用 %s --help 查看完整帮助信息\n", os.Args[0])
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/zhengshuai-xiao/DedupScan/cmd"
	"github.com/zhengshuai-xiao/DedupScan/internal"
)

var logger = internal.GetLogger("dedupscan_main")

func main() {
	err := cmd.Main(os.Args)
	if err != nil {
		logger.Fatal(err)
	}
}

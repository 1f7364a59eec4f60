package util

import (
	"os"
	"strings"

	"tlog.app/go/tlog"
)

// InitLogger directs log output to stderr and enables the log topics of opt. Verbose mode enables the statistics
// topics of every compiler stage.
func InitLogger(opt Options) {
	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(os.Stderr, tlog.LstdFlags))

	var topics []string
	if opt.Verbose {
		topics = append(topics, "stats", "regs")
	}
	if len(opt.Log) > 0 {
		topics = append(topics, opt.Log)
	}
	tlog.SetVerbosity(strings.Join(topics, ","))
}

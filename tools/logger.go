package tools

import (
	"github.com/golang/glog"
)

var isEnabled = true

func EnableLogger() {
	isEnabled = true
}

// DisableLogger silences LogOutput. Warnings and errors are still logged.
func DisableLogger() {
	isEnabled = false
}

func LogOutput(val ...interface{}) {
	if isEnabled {
		glog.InfoDepth(1, val...)
	}
}

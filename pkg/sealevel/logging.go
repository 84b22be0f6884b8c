package sealevel

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Logger collects program log messages emitted during instruction
// execution, in the same form a validator would present them.
type Logger interface {
	Log(msg string)
}

type LogRecorder struct {
	Logs []string
}

func (recorder *LogRecorder) Log(msg string) {
	recorder.Logs = append(recorder.Logs, msg)
}

func (execCtx *ExecutionCtx) log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	klog.V(2).Info(msg)
	if execCtx.Log != nil {
		execCtx.Log.Log(msg)
	}
}

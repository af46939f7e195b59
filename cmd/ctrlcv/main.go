package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/ctrlcv/internal/cli"
	"github.com/temirov/ctrlcv/internal/utils"
)

// main is the entry point for the ctrlcv command.
func main() {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(level)
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()
	if applicationExecutionError := cli.Execute(loggerInstance, level); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}

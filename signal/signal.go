/*
Copyright © 2020 Marvin

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package signal

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wentaojin/dbdumper/logger"
	"go.uber.org/zap"
)

// SetupSignalHandler calls shutdownFunc on the first SIGINT or SIGTERM, a second signal exits immediately
func SetupSignalHandler(shutdownFunc func()) {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		sig := <-sc
		logger.Warn("got signal, graceful shutdown the running dump", zap.String("signal", sig.String()))
		shutdownFunc()

		sig = <-sc
		logger.Warn("got signal again, exit immediately", zap.String("signal", sig.String()))
		_ = logger.Sync()
		os.Exit(1)
	}()
}

package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CallLocker = (*MemoryCallLocker)(nil)
	_ Scheduler  = timeScheduler{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)

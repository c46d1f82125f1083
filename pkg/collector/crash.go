package collector

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/porby-sdk/porby/pkg/model"
)

// crashSignals are the fatal signals spec §4.9 names. Go's runtime
// treats SIGSEGV/SIGBUS/SIGFPE/SIGILL specially (they are usually
// unrecoverable synchronous faults raised by the runtime itself);
// os/signal.Notify can still observe them on most Unix targets, but
// recovering and continuing execution past one is unsafe — this
// handler only captures context and re-raises, it never resumes.
var crashSignals = []os.Signal{
	syscall.SIGABRT,
	syscall.SIGBUS,
	syscall.SIGFPE,
	syscall.SIGILL,
	syscall.SIGSEGV,
	syscall.SIGTRAP,
}

// CrashHandler installs signal-based crash capture, per spec §4.9.
// It implements Collector so the Engine can register/unregister it
// alongside the other collectors.
type CrashHandler struct {
	emergencyFlush func()

	mu      sync.Mutex
	emit    EmitFunc
	sigCh   chan os.Signal
	stopped chan struct{}
}

// NewCrashHandler constructs a handler. emergencyFlush is the
// Engine's synchronous drain-to-journal call.
func NewCrashHandler(emergencyFlush func()) *CrashHandler {
	return &CrashHandler{emergencyFlush: emergencyFlush}
}

func (c *CrashHandler) Start(emit EmitFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sigCh != nil {
		return nil
	}
	c.emit = emit
	c.sigCh = make(chan os.Signal, 1)
	c.stopped = make(chan struct{})
	signal.Notify(c.sigCh, crashSignals...)
	go c.watch(c.sigCh, c.stopped)
	return nil
}

func (c *CrashHandler) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sigCh == nil {
		return
	}
	signal.Stop(c.sigCh)
	close(c.stopped)
	c.sigCh = nil
}

func (c *CrashHandler) watch(sigCh chan os.Signal, stopped chan struct{}) {
	select {
	case sig := <-sigCh:
		c.handle(sig)
	case <-stopped:
	}
}

// handle runs the five steps of spec §4.9: capture stack, build entry,
// deliver, emergency flush, restore-and-reraise.
func (c *CrashHandler) handle(sig os.Signal) {
	frames := captureStack(3)
	entry := buildCrashEntry(sig.String(), "", fmt.Sprintf("fatal signal: %s", sig), frames, "")

	if c.emit != nil {
		c.emit(entry)
	}
	if c.emergencyFlush != nil {
		c.emergencyFlush()
	}

	signal.Stop(c.sigCh)
	signal.Reset(sig)
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(sig)
	}
}

// captureStack walks the goroutine's call stack via runtime.Callers,
// the portable Go stdlib equivalent of the native symbol-table walk
// spec §4.9 describes; Function names stand in for the demangled
// symbol. skip is passed to runtime.Callers unchanged: 0 keeps
// runtime.Callers' own frame, 1 starts at captureStack, 2 at its caller.
func captureStack(skip int) []model.StackFrame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []model.StackFrame
	idx := 0
	for {
		f, more := frames.Next()
		out = append(out, model.StackFrame{
			Index:     idx,
			Address:   uint64(f.PC),
			Symbol:    f.Function,
			RawSymbol: fmt.Sprintf("%s:%d", f.File, f.Line),
		})
		idx++
		if !more {
			break
		}
	}
	return out
}

func buildCrashEntry(sigName, exceptionType, reason string, frames []model.StackFrame, threadName string) model.LogEntry {
	extra := model.CrashExtraOf(model.CrashExtra{
		Signal:        sigName,
		ExceptionType: exceptionType,
		Reason:        reason,
		Frames:        frames,
		ThreadName:    threadName,
	})
	e := model.NewEntry(model.LevelFatal, model.CategoryCrash, reason, model.SourceSite{})
	return e.WithExtra(extra)
}

// RecoverAndFlush is the Go analogue of spec §4.9's uncaught-exception
// hook for in-process panics (as opposed to the fatal, usually
// unrecoverable signals CrashHandler covers): recover() is Go's only
// portable hook for a goroutine panic. Defer it at the top of any
// goroutine the Engine spawns on the caller's behalf — collector
// callbacks, the flush timer, the connection read loop — so a panic
// there still reaches the journal before the program exits. After
// handling it re-panics, preserving the default crash behavior (a
// non-zero exit and a runtime-printed stack) the caller would have
// seen without this hook.
func RecoverAndFlush(emit EmitFunc, emergencyFlush func()) {
	r := recover()
	if r == nil {
		return
	}

	frames := captureStack(3)
	entry := buildCrashEntry("", fmt.Sprintf("%T", r), fmt.Sprint(r), frames, "")

	if emit != nil {
		emit(entry)
	}
	if emergencyFlush != nil {
		emergencyFlush()
	}

	slog.Error("collector: recovered panic, re-panicking after emergency flush", slog.Any("panic", r))
	panic(r)
}

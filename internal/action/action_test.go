package action

import (
	"context"
	"os"
	"strconv"
	"syscall"
	"testing"
)

func TestParseTOMLValue(t *testing.T) {
	a, err := ParseTOMLValue(nil)
	if err != nil || a != Default {
		t.Errorf("nil: got (%v, %v), want (Default, nil)", a, err)
	}

	a, err = ParseTOMLValue(int64(9))
	if err != nil || a.IsCommand() || a.SignalValue() != syscall.Signal(9) {
		t.Errorf("int64(9): got (%v, %v)", a, err)
	}

	a, err = ParseTOMLValue("echo stop ${PID}")
	if err != nil || !a.IsCommand() {
		t.Errorf("command string: got (%v, %v)", a, err)
	}

	a, err = ParseTOMLValue("15")
	if err != nil || a.IsCommand() || a.SignalValue() != syscall.Signal(15) {
		t.Errorf("numeric string: got (%v, %v)", a, err)
	}

	if _, err := ParseTOMLValue(3.14); err == nil {
		t.Error("unsupported type should error")
	}
}

func TestRunSignal(t *testing.T) {
	if err := Run(context.Background(), Signal(syscall.Signal(0)), os.Getpid()); err != nil {
		t.Errorf("signal 0 against self should succeed: %v", err)
	}
}

func TestRunCommandSubstitutesPID(t *testing.T) {
	pid := 4242
	a := Command("test ${PID} = " + strconv.Itoa(pid))

	if err := Run(context.Background(), a, pid); err != nil {
		t.Errorf("expected ${PID} to be substituted with %d: %v", pid, err)
	}
}

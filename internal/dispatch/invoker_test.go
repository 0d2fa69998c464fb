package dispatch

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestExecInvokerArgs(t *testing.T) {
	e := &ExecInvoker{Program: "ncm-ncd", StateDir: "/var/run/cdispd", Retries: 2, Timeout: 30 * time.Second}

	got := e.buildArgs(Request{Names: []string{"afs", "spma"}, ProfileID: 9})
	want := []string{"--state", "/var/run/cdispd", "--retries", "2", "--timeout", "30", "--profile-id", "9", "--configure", "afs", "spma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}

	got = e.buildArgs(Request{All: true, ProfileID: 9})
	want = []string{"--state", "/var/run/cdispd", "--retries", "2", "--timeout", "30", "--profile-id", "9", "--all"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("all args = %v, want %v", got, want)
	}
}

func TestExecInvokerMinimalArgs(t *testing.T) {
	e := &ExecInvoker{Program: "ncm-ncd"}
	got := e.buildArgs(Request{Names: []string{"spma"}})
	want := []string{"--configure", "spma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestExecInvokerRequiresProgram(t *testing.T) {
	e := &ExecInvoker{}
	if err := e.Invoke(context.Background(), Request{All: true}); err == nil {
		t.Fatalf("expected error for missing program")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type testService struct {
	name string
	log  *[]string
	err  error
}

func (s testService) Run() { *s.log = append(*s.log, "run "+s.name) }
func (s testService) Shutdown(context.Context) error {
	*s.log = append(*s.log, "stop "+s.name)
	return s.err
}
func (s testService) String() string { return s.name }

func TestGroup(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	g := Group{}
	g.Add(
		testService{name: "a", log: &log},
		"not runnable",
		testService{name: "b", log: &log, err: boom},
		testService{name: "c", log: &log, err: context.Canceled},
	)
	g.Start()
	err := g.Shutdown(context.Background())

	want := "[run a run b run c stop c stop b stop a]"
	if got := fmt.Sprint(log); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected the boom error, got %v", err)
	}
}

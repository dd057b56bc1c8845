package statemachine

import (
	"errors"
	"testing"
)

type light string
type press string

func newLight() *Machine[light, press] {
	return New("light",
		Transition[light, press]{From: "off", Action: "toggle", To: "on"},
		Transition[light, press]{From: "on", Action: "toggle", To: "off"},
		Transition[light, press]{From: "on", Action: "dim", To: "dimmed"},
	)
}

func TestMachineNext(t *testing.T) {
	m := newLight()

	to, err := m.Next("off", "toggle")
	if err != nil || to != "on" {
		t.Fatalf("Next(off, toggle) = %q, %v", to, err)
	}

	_, err = m.Next("off", "dim")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	var te *TransitionError[light, press]
	if !errors.As(err, &te) || te.From != "off" || te.Action != "dim" {
		t.Fatalf("unexpected transition error %#v", err)
	}
}

func TestMachineActions(t *testing.T) {
	m := newLight()
	got := m.Actions("on")
	if len(got) != 2 || got[0] != "toggle" || got[1] != "dim" {
		t.Fatalf("Actions(on) = %v", got)
	}
	if m.Can("dimmed", "toggle") {
		t.Fatal("dimmed should be terminal")
	}
}

func TestMachineDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate transition")
		}
	}()
	New("dup",
		Transition[light, press]{From: "off", Action: "toggle", To: "on"},
		Transition[light, press]{From: "off", Action: "toggle", To: "dimmed"},
	)
}

package logfields

import (
	"errors"
	"testing"
)

func TestErrorAttrHandlesNil(t *testing.T) {
	a := Error(nil)
	if a.Key != KeyError || a.Value.String() != "" {
		t.Fatalf("nil error attr = %v", a)
	}
	a = Error(errors.New("boom"))
	if a.Value.String() != "boom" {
		t.Fatalf("error attr = %v", a)
	}
}

func TestComponentAttrKey(t *testing.T) {
	if a := Component("spma"); a.Key != KeyComponent || a.Value.String() != "spma" {
		t.Fatalf("component attr = %v", a)
	}
}

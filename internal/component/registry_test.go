package component

import (
	"reflect"
	"testing"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
	"git.home.luguber.info/inful/cdispd/internal/profile"
)

func buildProfile(id uint64, elements map[string]profile.Element) *profile.Profile {
	if _, ok := elements["/"]; !ok {
		elements["/"] = profile.Element{Checksum: "root"}
	}
	return profile.New(id, elements)
}

func TestExtractMissingComponentsPath(t *testing.T) {
	p := buildProfile(1, map[string]profile.Element{"/software": {Checksum: "sw"}})
	reg, err := Extract(p)
	if err == nil {
		t.Fatalf("expected MissingComponentsPath error")
	}
	if !cerr.IsCategory(err, cerr.CategoryProfile) {
		t.Fatalf("wrong category: %v", err)
	}
	if len(reg) != 0 {
		t.Fatalf("registry should be empty, got %v", reg)
	}
}

func TestExtractFlagsAndChanges(t *testing.T) {
	p := buildProfile(2, map[string]profile.Element{
		"/software/components":                        {Checksum: "c"},
		"/software/components/spma":                   {Checksum: "c1"},
		"/software/components/spma/active":            {Checksum: "c2", Value: "true"},
		"/software/components/spma/dispatch":          {Checksum: "c3", Value: "false"},
		"/software/components/spma/register_change":   {Checksum: "c4"},
		"/software/components/spma/register_change/1": {Checksum: "c5", Value: "/software/repositories"},
		"/software/components/spma/register_change/0": {Checksum: "c6", Value: "/system/kernel"},
		// grub declares nothing: both flags misconfigured
		"/software/components/grub": {Checksum: "g"},
		// afs has an unreadable active flag
		"/software/components/afs":        {Checksum: "a"},
		"/software/components/afs/active": {Checksum: "a1", Value: "maybe"},
	})

	reg, err := Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reg) != 3 {
		t.Fatalf("expected 3 components, got %v", reg.Names())
	}

	spma := reg["spma"]
	if !spma.IsActive() || spma.IsDispatchable() {
		t.Errorf("spma flags wrong: %+v", spma)
	}
	want := []string{"/system/kernel", "/software/repositories"}
	if !reflect.DeepEqual(spma.RegisteredChanges, want) {
		t.Errorf("registered changes = %v, want %v (declared order)", spma.RegisteredChanges, want)
	}

	grub := reg["grub"]
	if grub.Active.IsSome() || grub.Dispatch.IsSome() {
		t.Errorf("grub flags should be absent: %+v", grub)
	}
	if grub.IsActive() {
		t.Errorf("misconfigured component must count as inactive")
	}

	if reg["afs"].Active.IsSome() {
		t.Errorf("unparsable active flag should be treated as absent")
	}
}

func TestExtractEmptyComponentsSubtree(t *testing.T) {
	p := buildProfile(3, map[string]profile.Element{
		"/software/components": {Checksum: "c"},
	})
	reg, err := Extract(p)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reg) != 0 {
		t.Fatalf("expected empty registry, got %v", reg.Names())
	}
}

package layout

import (
	"testing"

	"github.com/goki/snngen/sltype"
)

func TestCheckMembersEmpty(t *testing.T) {
	if err := CheckMembers(nil, sltype.PrecisionFloat); err != nil {
		t.Fatalf("empty members: %v", err)
	}
}

func TestCheckMembersAligned(t *testing.T) {
	members := []Member{
		{Name: "V", Kind: sltype.KindScalar},
		{Name: "U", Kind: sltype.KindScalar},
	}
	if err := CheckMembers(members, sltype.PrecisionFloat); err != nil {
		t.Fatalf("8 bytes (2x4): %v", err)
	}
}

func TestCheckMembersMisaligned(t *testing.T) {
	members := []Member{
		{Name: "flag", Kind: sltype.KindUint8},
		{Name: "V", Kind: sltype.KindScalar},
	}
	if err := CheckMembers(members, sltype.PrecisionFloat); err == nil {
		t.Fatal("expected error for 5-byte packed size")
	}
}

func TestCheckMembersUnstorableKind(t *testing.T) {
	members := []Member{{Name: "x", Kind: sltype.KindVoid}}
	if err := CheckMembers(members, sltype.PrecisionFloat); err == nil {
		t.Fatal("expected error for KindVoid")
	}
}

func TestCheckMembersDoublePrecision(t *testing.T) {
	members := []Member{{Name: "V", Kind: sltype.KindScalar}}
	if err := CheckMembers(members, sltype.PrecisionDouble); err != nil {
		t.Fatalf("8-byte scalar under double precision: %v", err)
	}
}
